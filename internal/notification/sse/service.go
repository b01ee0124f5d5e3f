// Package sse provides Server-Sent Events support for real-time updates.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"spotter_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventUpdateCreated EventType = "update_created"
	EventLeadUpdated   EventType = "lead_updated"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// Event represents an SSE event payload
type Event struct {
	Type     EventType   `json:"type"`
	UpdateID int64       `json:"update_id,omitempty"`
	LeadID   *int64      `json:"lead_id,omitempty"`
	Title    string      `json:"title,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID int64
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[int64][]*client // userID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		clients: make(map[int64][]*client),
		log:     log,
	}
}

// addClient registers a new client connection
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

// removeClient unregisters a client connection. Clients already dropped by
// Close are left alone.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl != c {
			continue
		}
		s.clients[c.userID] = append(clients[:i:i], clients[i+1:]...)
		if len(s.clients[c.userID]) == 0 {
			delete(s.clients, c.userID)
		}
		close(c.events)
		return
	}
}

// Connected returns the number of open streams for userID.
func (s *Service) Connected(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Publish sends an event to every stream of a user and returns how many
// streams accepted it. Slow streams drop the event.
func (s *Service) Publish(userID int64, event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sent := 0
	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
			sent++
		default:
			s.log.Warn("sse buffer full", "user_id", userID, "type", event.Type)
		}
	}
	s.log.Debug("sse event published", "user_id", userID, "type", event.Type, "clients", sent)
	return sent
}

// PublishUpdate satisfies the in-app delivery channel for a single process.
func (s *Service) PublishUpdate(_ context.Context, userID int64, event Event) error {
	s.Publish(userID, event)
	return nil
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (int64, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: userID,
			events: make(chan Event, clientBuffer),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"user_id": userID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "user_id", userID)

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "user_id", userID)
				return
			case <-heartbeat.C:
				c.SSEvent("ping", "")
				c.Writer.Flush()
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[int64][]*client)
}
