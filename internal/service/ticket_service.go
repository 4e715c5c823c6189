package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	defaultMaxAttachments     = 5
	defaultMaxAttachmentBytes = 5 * 1024 * 1024
	defaultAgentSenderName    = "Support Agent"
	attachmentCleanupTimeout  = 10 * time.Second
)

// TicketService coordinates ticket workflows. Every write to a ticket or its
// thread goes through here.
type TicketService struct {
	tickets                 repository.TicketRepository
	replies                 repository.ReplyRepository
	locker                  repository.TicketLocker
	attachments             storage.AttachmentStore
	dispatcher              events.Dispatcher
	logger                  *zap.Logger
	retry                   RetryPolicy
	limits                  config.AttachmentConfig
	allowCustomerOnResolved bool
	now                     func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo              repository.TicketRepository
	ReplyRepo               repository.ReplyRepository
	Locker                  repository.TicketLocker
	Attachments             storage.AttachmentStore
	Dispatcher              events.Dispatcher
	Logger                  *zap.Logger
	Retry                   RetryPolicy
	AttachmentLimits        config.AttachmentConfig
	AllowCustomerOnResolved bool
	Clock                   func() time.Time
}

// TicketCreateInput describes a customer submission.
type TicketCreateInput struct {
	CustomerName  string
	CustomerEmail string
	Subject       string
	Description   string
	Priority      string
	Attachments   []storage.Upload
}

// TicketListFilter describes agent listing filters. Empty strings mean "any".
type TicketListFilter struct {
	Status   string
	Priority string
	Search   string
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:                 deps.TicketRepo,
		replies:                 deps.ReplyRepo,
		locker:                  deps.Locker,
		attachments:             deps.Attachments,
		dispatcher:              deps.Dispatcher,
		logger:                  deps.Logger,
		retry:                   deps.Retry,
		limits:                  deps.AttachmentLimits,
		allowCustomerOnResolved: deps.AllowCustomerOnResolved,
		now:                     deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.limits.MaxCount <= 0 {
		svc.limits.MaxCount = defaultMaxAttachments
	}
	if svc.limits.MaxSizeBytes <= 0 {
		svc.limits.MaxSizeBytes = defaultMaxAttachmentBytes
	}
	return svc
}

// CreateTicket validates a submission, stores its attachments and creates the ticket.
// Nothing is persisted when validation fails.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket, err := s.validateCreate(input)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.storeAttachments(ctx, input.Attachments)
	if err != nil {
		return nil, err
	}
	ticket.Attachments = uploaded

	now := s.timestamp()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	err = s.retry.do(ctx, func(ctx context.Context) error {
		return s.tickets.Create(ctx, ticket)
	})
	if err != nil {
		s.discardAttachments(uploaded)
		return nil, storeError(err, "ticket")
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int("attachments", len(uploaded)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(ticket.CustomerActor()),
		Payload: events.TicketCreatedPayload{
			TicketNumber:    ticket.TicketNumber,
			Priority:        ticket.Priority,
			Subject:         ticket.Subject,
			AttachmentCount: len(uploaded),
		},
	})
	return ticket, nil
}

// AppendReply stores a reply and updates the ticket's attribution in one unit of work.
func (s *TicketService) AppendReply(ctx context.Context, ticketID string, actor domain.Actor, message string) (*domain.Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	var reply *domain.Reply
	err := s.retry.do(ctx, func(ctx context.Context) error {
		return s.locker.WithTicket(ctx, ticketID, func(ctx context.Context, tx repository.TicketTx) error {
			current := tx.Ticket()
			if actor.Kind == domain.SenderCustomer {
				if !sameIdentity(current.CustomerActor().Identity, actor.Identity) {
					return apperrors.NewNotFound("ticket", nil)
				}
				if current.Status == domain.TicketStatusResolved && !s.allowCustomerOnResolved {
					return apperrors.NewValidationError("ticket is resolved and no longer accepts customer replies", nil)
				}
			}

			latest, err := tx.LatestReply(ctx)
			if err != nil {
				return err
			}
			var prev time.Time
			if latest != nil {
				prev = latest.CreatedAt
			}

			r := &domain.Reply{
				Sender:     actor.Kind,
				SenderName: senderName(actor, current),
				Message:    message,
				CreatedAt:  s.nextAfter(prev),
			}
			if err := tx.InsertReply(ctx, r); err != nil {
				return err
			}

			current.LastReplyBy = domain.LastReplyByFor(actor.Kind)
			current.UpdatedAt = laterOf(r.CreatedAt, s.nextAfter(current.UpdatedAt))
			if err := tx.UpdateTicket(ctx, current); err != nil {
				return err
			}
			reply = r
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}

	s.logger.Info("reply appended",
		zap.String("ticket_id", reply.TicketID),
		zap.String("reply_id", reply.ID),
		zap.String("sender", string(reply.Sender)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReplyAdded,
		TicketID: reply.TicketID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketReplyAddedPayload{
			ReplyID:     reply.ID,
			Sender:      reply.Sender,
			BodyPreview: stringPreview(reply.Message, 120),
		},
	})
	return reply, nil
}

// SetStatus moves a ticket to a new status. Setting the current status is a no-op.
func (s *TicketService) SetStatus(ctx context.Context, ticketID string, actor domain.Actor, status string) (*domain.Ticket, error) {
	if !actor.IsAgent() {
		return nil, apperrors.NewForbidden("agent access required")
	}
	next, ok := domain.ParseTicketStatus(status)
	if !ok {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"allowed": domain.TicketStatuses})
	}

	var (
		updated  *domain.Ticket
		previous domain.TicketStatus
		changed  bool
	)
	err := s.retry.do(ctx, func(ctx context.Context) error {
		return s.locker.WithTicket(ctx, ticketID, func(ctx context.Context, tx repository.TicketTx) error {
			current := tx.Ticket()
			previous = current.Status
			changed = false
			if current.Status == next {
				updated = current
				return nil
			}
			if !isValidTransition(current.Status, next) {
				return apperrors.NewInvalidTransition(string(current.Status), string(next))
			}
			current.Status = next
			current.UpdatedAt = s.nextAfter(current.UpdatedAt)
			if err := tx.UpdateTicket(ctx, current); err != nil {
				return err
			}
			updated = current
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}

	if changed {
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", updated.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(next)))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    events.ActorFrom(actor),
			Payload:  events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: next},
		})
	}
	return updated, nil
}

// SetPriority changes a ticket's priority.
func (s *TicketService) SetPriority(ctx context.Context, ticketID string, actor domain.Actor, priority string) (*domain.Ticket, error) {
	if !actor.IsAgent() {
		return nil, apperrors.NewForbidden("agent access required")
	}
	next, ok := domain.ParseTicketPriority(priority)
	if !ok {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"allowed": domain.TicketPriorities})
	}

	var (
		updated  *domain.Ticket
		previous domain.TicketPriority
		changed  bool
	)
	err := s.retry.do(ctx, func(ctx context.Context) error {
		return s.locker.WithTicket(ctx, ticketID, func(ctx context.Context, tx repository.TicketTx) error {
			current := tx.Ticket()
			previous = current.Priority
			changed = false
			if current.Priority == next {
				updated = current
				return nil
			}
			current.Priority = next
			current.UpdatedAt = s.nextAfter(current.UpdatedAt)
			if err := tx.UpdateTicket(ctx, current); err != nil {
				return err
			}
			updated = current
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}

	if changed {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketPriorityChanged,
			TicketID: updated.ID,
			Actor:    events.ActorFrom(actor),
			Payload:  events.TicketPriorityChangedPayload{OldPriority: previous, NewPriority: next},
		})
	}
	return updated, nil
}

// GetByCapability returns the ticket identified by number and owner email. An
// unknown number and a wrong email fail with the same error.
func (s *TicketService) GetByCapability(ctx context.Context, ticketNumber, email string) (*domain.Ticket, error) {
	ticketNumber = domain.NormalizeTicketNumber(ticketNumber)
	email = normalizeEmail(email)
	if ticketNumber == "" || email == "" {
		return nil, apperrors.NewValidationError("ticket number and email are required", nil)
	}

	var ticket *domain.Ticket
	err := s.retry.do(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByNumber(ctx, ticketNumber)
		ticket = t
		return err
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err, "ticket")
	}

	var owner string
	if ticket != nil {
		owner = normalizeEmail(ticket.CustomerEmail)
	}
	// Digest both sides so the comparison cost does not depend on which half of
	// the capability was wrong.
	want := sha256.Sum256([]byte(owner))
	got := sha256.Sum256([]byte(email))
	match := subtle.ConstantTimeCompare(want[:], got[:]) == 1
	if ticket == nil || !match {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

// GetByID fetches a ticket for agents.
func (s *TicketService) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.retry.do(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByID(ctx, ticketID)
		ticket = t
		return err
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{Limit: filter.Limit, Offset: filter.Offset}
	if strings.TrimSpace(filter.Status) != "" {
		status, ok := domain.ParseTicketStatus(filter.Status)
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"allowed": domain.TicketStatuses})
		}
		repoFilter.Status = &status
	}
	if strings.TrimSpace(filter.Priority) != "" {
		priority, ok := domain.ParseTicketPriority(filter.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"allowed": domain.TicketPriorities})
		}
		repoFilter.Priority = &priority
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		repoFilter.SearchTerm = &term
	}
	repoFilter = repoFilter.Normalized()

	var tickets []domain.Ticket
	err := s.retry.do(ctx, func(ctx context.Context) error {
		list, err := s.tickets.ListWithFilter(ctx, repoFilter)
		tickets = list
		return err
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return tickets, nil
}

// ListReplies returns the thread of a ticket in chronological order.
func (s *TicketService) ListReplies(ctx context.Context, ticketID string) ([]domain.Reply, error) {
	if _, err := s.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.listThread(ctx, ticketID)
}

// ListRepliesByCapability returns the ticket and its thread for a customer.
func (s *TicketService) ListRepliesByCapability(ctx context.Context, ticketNumber, email string) (*domain.Ticket, []domain.Reply, error) {
	ticket, err := s.GetByCapability(ctx, ticketNumber, email)
	if err != nil {
		return nil, nil, err
	}
	replies, err := s.listThread(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, replies, nil
}

// GetReply fetches a single reply.
func (s *TicketService) GetReply(ctx context.Context, replyID string) (*domain.Reply, error) {
	var reply *domain.Reply
	err := s.retry.do(ctx, func(ctx context.Context) error {
		r, err := s.replies.GetByID(ctx, replyID)
		reply = r
		return err
	})
	if err != nil {
		return nil, storeError(err, "reply")
	}
	return reply, nil
}

// DeleteTicket removes a ticket with its thread and attachments.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	if !actor.IsAgent() {
		return apperrors.NewForbidden("agent access required")
	}

	var removed *domain.Ticket
	err := s.retry.do(ctx, func(ctx context.Context) error {
		return s.locker.WithTicket(ctx, ticketID, func(ctx context.Context, tx repository.TicketTx) error {
			removed = tx.Ticket()
			return tx.DeleteTicket(ctx)
		})
	})
	if err != nil {
		return storeError(err, "ticket")
	}

	s.discardAttachments(removed.Attachments)
	s.logger.Info("ticket deleted",
		zap.String("ticket_id", removed.ID),
		zap.String("ticket_number", removed.TicketNumber),
		zap.String("agent_id", actor.Identity))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: removed.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.TicketDeletedPayload{TicketNumber: removed.TicketNumber},
	})
	return nil
}

// DeleteReply removes a reply and recomputes the ticket's attribution from the
// remaining thread.
func (s *TicketService) DeleteReply(ctx context.Context, actor domain.Actor, replyID string) (*domain.Ticket, error) {
	if !actor.IsAgent() {
		return nil, apperrors.NewForbidden("agent access required")
	}
	reply, err := s.GetReply(ctx, replyID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Ticket
	err = s.retry.do(ctx, func(ctx context.Context) error {
		return s.locker.WithTicket(ctx, reply.TicketID, func(ctx context.Context, tx repository.TicketTx) error {
			if err := tx.DeleteReply(ctx, replyID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NewNotFound("reply", nil)
				}
				return err
			}
			latest, err := tx.LatestReply(ctx)
			if err != nil {
				return err
			}

			current := tx.Ticket()
			current.LastReplyBy = domain.LastReplyByNone
			if latest != nil {
				current.LastReplyBy = domain.LastReplyByFor(latest.Sender)
			}
			current.UpdatedAt = s.nextAfter(current.UpdatedAt)
			if err := tx.UpdateTicket(ctx, current); err != nil {
				return err
			}
			updated = current
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "reply")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReplyDeleted,
		TicketID: updated.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketReplyDeletedPayload{
			ReplyID:     replyID,
			LastReplyBy: updated.LastReplyBy,
		},
	})
	return updated, nil
}

func (s *TicketService) listThread(ctx context.Context, ticketID string) ([]domain.Reply, error) {
	var replies []domain.Reply
	err := s.retry.do(ctx, func(ctx context.Context) error {
		list, err := s.replies.ListByTicket(ctx, ticketID)
		replies = list
		return err
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return replies, nil
}

func (s *TicketService) validateCreate(input TicketCreateInput) (*domain.Ticket, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		fields["customer_name"] = "required"
	}
	email := strings.TrimSpace(input.CustomerEmail)
	switch {
	case email == "":
		fields["customer_email"] = "required"
	case !validEmail(email):
		fields["customer_email"] = "invalid email address"
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		fields["subject"] = "required"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		fields["description"] = "required"
	}

	priority := domain.TicketPriorityMedium
	if raw := strings.TrimSpace(input.Priority); raw != "" {
		parsed, ok := domain.ParseTicketPriority(raw)
		if !ok {
			fields["priority"] = "must be one of Low, Medium, High"
		}
		priority = parsed
	}

	if len(input.Attachments) > s.limits.MaxCount {
		fields["images"] = fmt.Sprintf("at most %d attachments allowed", s.limits.MaxCount)
	} else {
		for _, upload := range input.Attachments {
			if upload.Size > s.limits.MaxSizeBytes {
				fields["images"] = fmt.Sprintf("%s exceeds the %d byte limit", upload.FileName, s.limits.MaxSizeBytes)
				break
			}
		}
	}

	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket submission", map[string]any{"fields": fields})
	}

	return &domain.Ticket{
		CustomerName:  name,
		CustomerEmail: email,
		Subject:       subject,
		Description:   description,
		Priority:      priority,
		Status:        domain.TicketStatusNew,
		LastReplyBy:   domain.LastReplyByNone,
	}, nil
}

func (s *TicketService) storeAttachments(ctx context.Context, uploads []storage.Upload) ([]domain.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.attachments == nil {
		return nil, apperrors.NewInternalError(errors.New("attachment storage not configured"))
	}

	stored := make([]domain.Attachment, 0, len(uploads))
	for _, upload := range uploads {
		att, err := s.attachments.Put(ctx, upload)
		if err != nil {
			s.discardAttachments(stored)
			return nil, apperrors.NewStorageError(err)
		}
		stored = append(stored, att)
	}
	return stored, nil
}

// discardAttachments removes objects best-effort; failures are only logged.
func (s *TicketService) discardAttachments(attachments []domain.Attachment) {
	if s.attachments == nil || len(attachments) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), attachmentCleanupTimeout)
	defer cancel()
	for _, att := range attachments {
		if err := s.attachments.Delete(ctx, att.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("attachment cleanup failed", zap.String("key", att.Key), zap.Error(err))
		}
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.timestamp()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// timestamp returns the current time at store precision.
func (s *TicketService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextAfter returns the current time, or prev plus one microsecond when the clock
// has not moved past prev.
func (s *TicketService) nextAfter(prev time.Time) time.Time {
	now := s.timestamp()
	if !prev.IsZero() && !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func validateActor(actor domain.Actor) error {
	if !actor.Kind.Valid() {
		return apperrors.NewValidationError("unknown actor kind", map[string]any{"kind": actor.Kind})
	}
	if strings.TrimSpace(actor.Identity) == "" {
		return apperrors.NewValidationError("actor identity required", nil)
	}
	return nil
}

func senderName(actor domain.Actor, ticket *domain.Ticket) string {
	if name := strings.TrimSpace(actor.Name); name != "" {
		return name
	}
	if actor.Kind == domain.SenderCustomer {
		return ticket.CustomerName
	}
	return defaultAgentSenderName
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameIdentity(a, b string) bool {
	return normalizeEmail(a) == normalizeEmail(b)
}

func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// allowedTransitions lists the statuses an agent may move a ticket to. Every
// status is reachable from every other one, Resolved included.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:      {domain.TicketStatusPending, domain.TicketStatusResolved},
	domain.TicketStatusPending:  {domain.TicketStatusNew, domain.TicketStatusResolved},
	domain.TicketStatusResolved: {domain.TicketStatusNew, domain.TicketStatusPending},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
