package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

// Audience names who a notice is meant for.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAgents   Audience = "agents"
)

// Notice is the rendered form of a lifecycle event.
type Notice struct {
	Audience Audience
	TicketID string
	Summary  string
	Email    bool
	Webhook  bool
}

// NotificationService turns lifecycle events into notices. Delivery is not
// implemented; notices are logged with the channels they would use.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger, cfg: cfg}
}

// RegisterHandlers subscribes to every lifecycle event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketReplyAdded,
		events.EventTicketReplyDeleted,
		events.EventTicketDeleted,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	notice, ok := n.Render(event)
	if !ok {
		return nil
	}
	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", notice.TicketID),
		zap.String("audience", string(notice.Audience)),
		zap.String("summary", notice.Summary),
	}
	if notice.Email {
		fields = append(fields, zap.String("email_from", n.cfg.EmailFrom))
	}
	if notice.Webhook {
		fields = append(fields, zap.String("webhook_url", n.cfg.WebhookURL))
	}
	n.logger.Info("notice", fields...)
	return nil
}

// Render builds the notice for event. Events nobody needs to hear about, such
// as an actor's own change, report false.
func (n *NotificationService) Render(event events.Event) (Notice, bool) {
	notice := Notice{TicketID: event.TicketID, Webhook: n.cfg.WebhookURL != ""}

	switch p := event.Payload.(type) {
	case events.TicketCreatedPayload:
		notice.Audience = AudienceAgents
		notice.Summary = fmt.Sprintf("New %s priority ticket %s: %s", p.Priority, p.TicketNumber, p.Subject)
		if p.AttachmentCount > 0 {
			notice.Summary += fmt.Sprintf(" (%d attachments)", p.AttachmentCount)
		}
	case events.TicketReplyAddedPayload:
		if p.Sender == domain.SenderAgent {
			notice.Audience = AudienceCustomer
			notice.Summary = "An agent replied: " + p.BodyPreview
		} else {
			notice.Audience = AudienceAgents
			notice.Summary = "Customer replied: " + p.BodyPreview
		}
	case events.TicketStatusChangedPayload:
		notice.Audience = AudienceCustomer
		notice.Summary = fmt.Sprintf("Status changed from %s to %s", p.OldStatus, p.NewStatus)
	case events.TicketPriorityChangedPayload:
		notice.Audience = AudienceAgents
		notice.Summary = fmt.Sprintf("Priority changed from %s to %s", p.OldPriority, p.NewPriority)
	case events.TicketReplyDeletedPayload:
		notice.Audience = AudienceAgents
		notice.Summary = "Reply " + p.ReplyID + " removed"
	case events.TicketDeletedPayload:
		notice.Audience = AudienceAgents
		notice.Summary = "Ticket " + p.TicketNumber + " deleted"
	default:
		return Notice{}, false
	}

	// Customers are emailed; agents work from the dashboard.
	notice.Email = notice.Audience == AudienceCustomer && n.cfg.EmailFrom != ""
	return notice, true
}
