package worker

import (
	"context"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/service"
)

var countedEvents = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketStatusChanged,
	events.EventTicketPriorityChanged,
	events.EventTicketReplyAdded,
	events.EventTicketReplyDeleted,
	events.EventTicketDeleted,
}

// StartNotificationWorker registers notification handlers and event counters on
// the dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, metrics *observability.Metrics) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher == nil || metrics == nil {
		return
	}
	for _, eventType := range countedEvents {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			metrics.RecordEvent(string(event.Type))
			return nil
		})
	}
}
