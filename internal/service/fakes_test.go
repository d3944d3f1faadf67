package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/repository"
)

// fakeTicketRepo mirrors the store's conditional-update semantics in memory.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) put(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.CreatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) GetActiveByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.ChannelID != channelID || ticket.Status == domain.TicketStatusResolved {
			continue
		}
		if newest == nil || ticket.CreatedAt.After(newest.CreatedAt) {
			newest = ticket
		}
	}
	if newest == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *newest
	return &clone, nil
}

func (r *fakeTicketRepo) ListUnclaimed(_ context.Context, _ int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusPending && ticket.ClaimantName == nil {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) ListByClaimant(_ context.Context, operatorID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusClaimed &&
			ticket.ClaimantOperator != nil && *ticket.ClaimantOperator == operatorID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) List(_ context.Context, _, _ int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		result = append(result, *ticket)
	}
	return result, nil
}

func (r *fakeTicketRepo) Claim(_ context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	allowed := ticket.ClaimantName == nil ||
		(operatorID != nil && ticket.ClaimantOperator != nil && *ticket.ClaimantOperator == *operatorID) ||
		(operatorID == nil && ticket.ClaimantOperator == nil && *ticket.ClaimantName == operatorName)
	if !allowed {
		clone := *ticket
		return &clone, repository.ErrClaimConflict
	}
	ticket.Status = domain.TicketStatusClaimed
	ticket.ClaimantOperator = operatorID
	name := operatorName
	ticket.ClaimantName = &name
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) Transfer(_ context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.Status != domain.TicketStatusClaimed {
		return nil, pgx.ErrNoRows
	}
	ticket.ClaimantOperator = operatorID
	name := operatorName
	ticket.ClaimantName = &name
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) Resolve(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	ticket.Status = domain.TicketStatusResolved
	ticket.ClaimantOperator = nil
	ticket.ClaimantName = nil
	ticket.ResolvedAt = &now
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) Reopen(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.Status = domain.TicketStatusPending
	ticket.ClaimantOperator = nil
	ticket.ClaimantName = nil
	ticket.ResolvedAt = nil
	clone := *ticket
	return &clone, nil
}

// fakeMessageRepo keeps messages in insertion order.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
	failNext bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return fmt.Errorf("simulated store failure")
	}
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			clone := r.messages[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Message
	for i := range r.messages {
		if r.messages[i].TicketID == ticketID {
			result = append(result, r.messages[i])
		}
	}
	return result, nil
}

func (r *fakeMessageRepo) UpdateStatus(_ context.Context, id string, status domain.MessageStatus) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Status = status
			now := time.Now()
			switch status {
			case domain.MessageStatusDelivered:
				if r.messages[i].DeliveredAt == nil {
					r.messages[i].DeliveredAt = &now
				}
			case domain.MessageStatusRead:
				if r.messages[i].ReadAt == nil {
					r.messages[i].ReadAt = &now
				}
			}
			clone := r.messages[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) MarkAllRead(_ context.Context, ticketID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	now := time.Now()
	for i := range r.messages {
		msg := &r.messages[i]
		if msg.TicketID == ticketID && msg.Direction == domain.DirectionIncoming && msg.Status != domain.MessageStatusRead {
			msg.Status = domain.MessageStatusRead
			msg.ReadAt = &now
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

// fakeAnalystRepo serves the access gate.
type fakeAnalystRepo struct {
	mu       sync.Mutex
	analysts map[string]*domain.Analyst
}

func newFakeAnalystRepo() *fakeAnalystRepo {
	return &fakeAnalystRepo{analysts: make(map[string]*domain.Analyst)}
}

func (r *fakeAnalystRepo) put(analyst *domain.Analyst) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *analyst
	r.analysts[analyst.ID] = &clone
}

func (r *fakeAnalystRepo) Create(_ context.Context, analyst *domain.Analyst) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if analyst.ID == "" {
		analyst.ID = fmt.Sprintf("analyst-%d", len(r.analysts)+1)
	}
	analyst.CreatedAt = time.Now()
	analyst.UpdatedAt = analyst.CreatedAt
	clone := *analyst
	r.analysts[analyst.ID] = &clone
	return nil
}

func (r *fakeAnalystRepo) Update(_ context.Context, analyst *domain.Analyst) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analysts[analyst.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *analyst
	r.analysts[analyst.ID] = &clone
	return nil
}

func (r *fakeAnalystRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analyst, ok := r.analysts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	analyst.Active = false
	return nil
}

func (r *fakeAnalystRepo) GetByID(_ context.Context, id string) (*domain.Analyst, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analyst, ok := r.analysts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *analyst
	return &clone, nil
}

func (r *fakeAnalystRepo) GetByUsername(_ context.Context, username string) (*domain.Analyst, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, analyst := range r.analysts {
		if analyst.Username == username && analyst.Active {
			clone := *analyst
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAnalystRepo) List(_ context.Context, includeInactive bool) ([]domain.Analyst, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Analyst
	for _, analyst := range r.analysts {
		if analyst.Active || includeInactive {
			result = append(result, *analyst)
		}
	}
	return result, nil
}

// fakeDispatcher records published events.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{}
}

func (d *fakeDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *fakeDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *fakeDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

// fakeSender records outbound gateway sends; fails when told to.
type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{}
}

func (s *fakeSender) SendText(_ context.Context, channelID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("gateway unavailable")
	}
	s.sent = append(s.sent, channelID+": "+text)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeIntakeStore keeps dialogue sessions in memory.
type fakeIntakeStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.IntakeSession
}

func newFakeIntakeStore() *fakeIntakeStore {
	return &fakeIntakeStore{sessions: make(map[string]*domain.IntakeSession)}
}

func (s *fakeIntakeStore) Get(_ context.Context, channelID string) (*domain.IntakeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[channelID]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (s *fakeIntakeStore) Put(_ context.Context, session *domain.IntakeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.sessions[session.ChannelID] = &clone
	return nil
}

func (s *fakeIntakeStore) Delete(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, channelID)
	return nil
}
