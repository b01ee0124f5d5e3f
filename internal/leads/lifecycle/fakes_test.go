package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"spotter_portal_backend/internal/events"
	"spotter_portal_backend/internal/leads/commission"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/repository"
	"spotter_portal_backend/platform/apperr"
)

const (
	agencyID        int64 = 3
	otherAgencyID   int64 = 4
	spotterID       int64 = 1
	otherSpotterID  int64 = 2
	agentA7         int64 = 7
	agentB8         int64 = 8
	adminID         int64 = 9
	inactiveAgentID int64 = 10
	foreignAgentID  int64 = 11
	foreignAdminID  int64 = 12
	leadID          int64 = 42
)

func ptr[T any](v T) *T { return &v }

type fakeUsers struct {
	users    map[int64]ports.User
	agencies map[int64]bool
}

func newFakeUsers() *fakeUsers {
	agency := agencyID
	other := otherAgencyID
	return &fakeUsers{
		users: map[int64]ports.User{
			spotterID:       {ID: spotterID, Role: domain.RoleSpotter, Name: "Sam Spotter", IsActive: true},
			otherSpotterID:  {ID: otherSpotterID, Role: domain.RoleSpotter, IsActive: true},
			agentA7:         {ID: agentA7, Role: domain.RoleAgent, AgencyID: &agency, Name: "Alex Agent", IsActive: true},
			agentB8:         {ID: agentB8, Role: domain.RoleAgent, AgencyID: &agency, Name: "Blair Agent", IsActive: true},
			adminID:         {ID: adminID, Role: domain.RoleAgencyAdmin, AgencyID: &agency, IsActive: true},
			inactiveAgentID: {ID: inactiveAgentID, Role: domain.RoleAgent, AgencyID: &agency, IsActive: false},
			foreignAgentID:  {ID: foreignAgentID, Role: domain.RoleAgent, AgencyID: &other, IsActive: true},
			foreignAdminID:  {ID: foreignAdminID, Role: domain.RoleAgencyAdmin, AgencyID: &other, IsActive: true},
		},
		agencies: map[int64]bool{agencyID: true, otherAgencyID: true},
	}
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (ports.User, error) {
	u, ok := f.users[id]
	if !ok {
		return ports.User{}, ports.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) AgencyExists(_ context.Context, id int64) (bool, error) {
	return f.agencies[id], nil
}

func actorFor(users *fakeUsers, id int64) domain.Actor {
	u := users.users[id]
	return domain.Actor{ID: u.ID, Role: u.Role, AgencyID: u.AgencyID}
}

type fakeNotifier struct {
	mu       sync.Mutex
	requests []ports.NotifyRequest
	err      error
}

func (f *fakeNotifier) Send(_ context.Context, req ports.NotifyRequest) (ports.SentNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ports.SentNotification{}, f.err
	}
	f.requests = append(f.requests, req)
	return ports.SentNotification{
		ID:             int64(len(f.requests)),
		RecipientID:    req.RecipientID,
		LeadID:         req.LeadID,
		TemplateName:   req.TemplateName,
		DeliveryStatus: "pending",
	}, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// barrierStore holds every GetByID until `parties` callers have read, so
// concurrent transitions are guaranteed to start from the same version.
type barrierStore struct {
	*repository.MemoryStore
	wg sync.WaitGroup
}

func newBarrierStore(inner *repository.MemoryStore, parties int) *barrierStore {
	b := &barrierStore{MemoryStore: inner}
	b.wg.Add(parties)
	return b
}

func (b *barrierStore) GetByID(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := b.MemoryStore.GetByID(ctx, id)
	b.wg.Done()
	b.wg.Wait()
	return lead, err
}

// failingStore fails every read listing.
type failingStore struct {
	*repository.MemoryStore
}

var errStoreDown = errors.New("connection refused")

func (failingStore) List(context.Context, repository.ListParams) ([]domain.Lead, int, error) {
	return nil, 0, errStoreDown
}

func (failingStore) ListAll(context.Context, repository.Filter) ([]domain.Lead, error) {
	return nil, errStoreDown
}

type fixture struct {
	engine   *Engine
	store    *repository.MemoryStore
	users    *fakeUsers
	notifier *fakeNotifier
	bus      *recordingBus

	mu    sync.Mutex
	clock time.Time
}

func newFixture(policy domain.RejectPolicy) *fixture {
	f := &fixture{
		store:    repository.NewMemoryStore(),
		users:    newFakeUsers(),
		notifier: &fakeNotifier{},
		bus:      &recordingBus{},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.engine = f.build(f.store, policy)
	return f
}

func (f *fixture) build(store repository.Store, policy domain.RejectPolicy) *Engine {
	pct, err := commission.NewPercentage(300, 1000)
	if err != nil {
		panic(err)
	}
	return New(Deps{
		Store:        store,
		Users:        f.users,
		Notifier:     f.notifier,
		Policy:       pct,
		Bus:          f.bus,
		RejectPolicy: policy,
	}, WithClock(f.tick))
}

// tick advances the fake clock by a minute per call.
func (f *fixture) tick() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fixture) actor(id int64) domain.Actor {
	return actorFor(f.users, id)
}

// seed stores lead 42 in the given state with consistent dependent fields.
func (f *fixture) seed(status domain.Status) domain.Lead {
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	lead := domain.Lead{
		ID:        leadID,
		Status:    status,
		SpotterID: spotterID,
		AgencyID:  agencyID,
		CreatedAt: created,
		Version:   1,
	}
	at := created.Add(time.Hour)
	switch status {
	case domain.StatusAssigned:
		lead.AgentID = ptr(agentA7)
		lead.AssignedAt = &at
	case domain.StatusInProgress:
		lead.AgentID = ptr(agentA7)
		lead.AssignedAt = &at
		lead.IsAccepted = true
		lead.AcceptedAt = &at
	case domain.StatusCompleted:
		lead.AgentID = ptr(agentA7)
		lead.AssignedAt = &at
		lead.IsAccepted = true
		lead.AcceptedAt = &at
		lead.ClosedAt = &at
		lead.FinalPriceCents = ptr(int64(1000))
		lead.AgreedCommissionAmountCents = ptr(int64(30))
		lead.SpotterCommissionAmountCents = ptr(int64(3))
	case domain.StatusClosed:
		lead.AgentID = ptr(agentA7)
		lead.AssignedAt = &at
		lead.IsAccepted = true
		lead.AcceptedAt = &at
		lead.ClosedAt = &at
		lead.FailureReason = ptr("buyer withdrew")
	}
	return f.store.Seed(lead)
}

func kindOf(err error) apperr.Kind {
	return apperr.GetKind(err)
}
