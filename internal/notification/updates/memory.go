package updates

import (
	"context"
	"sort"
	"sync"
	"time"

	"spotter_portal_backend/platform/apperr"
)

// MemoryStore is an in-process Store used by tests and local runs without a
// database.
type MemoryStore struct {
	mu      sync.RWMutex
	updates map[int64]Update
	nextID  int64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{updates: make(map[int64]Update), now: time.Now}
}

// SetClock replaces the clock used for created_at and read_at.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Create(_ context.Context, p CreateParams) (Update, error) {
	if p.RecipientID <= 0 {
		return Update{}, apperr.FieldValidation("recipient_id", "recipient is required").WithOp(opCreate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	u := Update{
		ID:             m.nextID,
		RecipientID:    p.RecipientID,
		LeadID:         p.LeadID,
		UpdateType:     p.UpdateType,
		TemplateName:   p.TemplateName,
		Title:          p.Title,
		Message:        p.Message,
		DeliveryStatus: StatusPending,
		CreatedAt:      m.now().UTC(),
	}
	m.updates[u.ID] = u
	return u, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (Update, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.updates[id]
	if !ok {
		return Update{}, apperr.NotFound(errUpdateNotFound).WithOp(opGet)
	}
	return u, nil
}

func (m *MemoryStore) ListForRecipient(_ context.Context, recipientID int64, limit, offset int) ([]Update, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []Update
	for _, u := range m.updates {
		if u.RecipientID == recipientID {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []Update{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]Update(nil), all[offset:end]...), total, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, id, recipientID int64) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.updates[id]
	if !ok || u.RecipientID != recipientID {
		return Update{}, apperr.NotFound(errUpdateNotFound).WithOp(opMarkRead)
	}
	if u.ReadAt == nil {
		at := m.now().UTC()
		u.ReadAt = &at
		m.updates[id] = u
	}
	return u, nil
}

func (m *MemoryStore) RecordAttempt(_ context.Context, id int64, at time.Time, deliveryErr error) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.updates[id]
	if !ok {
		return Update{}, apperr.NotFound(errUpdateNotFound).WithOp(opRecordAttempt)
	}
	if u.DeliveryStatus == StatusDelivered {
		return u, nil
	}

	u.DeliveryAttempts++
	u.LastAttemptAt = &at
	u.LastError = errorText(deliveryErr)
	if deliveryErr == nil {
		u.DeliveryStatus = StatusDelivered
		u.DeliveredAt = &at
	} else {
		u.DeliveryStatus = StatusFailed
	}
	m.updates[id] = u
	return u, nil
}

func (m *MemoryStore) ListRedeliverable(_ context.Context, maxAttempts int, pendingBefore time.Time, limit int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []Update
	for _, u := range m.updates {
		failed := u.DeliveryStatus == StatusFailed && u.DeliveryAttempts < maxAttempts
		stale := u.DeliveryStatus == StatusPending && u.CreatedAt.Before(pendingBefore)
		if failed || stale {
			due = append(due, u)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})

	ids := make([]int64, 0, len(due))
	for i, u := range due {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}
