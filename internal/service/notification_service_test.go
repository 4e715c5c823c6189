package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

func TestRenderNotices(t *testing.T) {
	n := NewNotificationService(nil, nil, config.NotificationConfig{EmailFrom: "desk@example.com"})

	cases := []struct {
		name     string
		payload  any
		audience Audience
		summary  string
		email    bool
	}{
		{
			name:     "created",
			payload:  events.TicketCreatedPayload{TicketNumber: "TKT-000001", Priority: domain.TicketPriorityHigh, Subject: "Down", AttachmentCount: 2},
			audience: AudienceAgents,
			summary:  "New High priority ticket TKT-000001: Down (2 attachments)",
		},
		{
			name:     "agent reply",
			payload:  events.TicketReplyAddedPayload{Sender: domain.SenderAgent, BodyPreview: "Try again"},
			audience: AudienceCustomer,
			summary:  "An agent replied: Try again",
			email:    true,
		},
		{
			name:     "customer reply",
			payload:  events.TicketReplyAddedPayload{Sender: domain.SenderCustomer, BodyPreview: "Still broken"},
			audience: AudienceAgents,
			summary:  "Customer replied: Still broken",
		},
		{
			name:     "status",
			payload:  events.TicketStatusChangedPayload{OldStatus: domain.TicketStatusNew, NewStatus: domain.TicketStatusResolved},
			audience: AudienceCustomer,
			summary:  "Status changed from New to Resolved",
			email:    true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notice, ok := n.Render(events.Event{TicketID: "t1", Payload: tc.payload})
			require.True(t, ok)
			assert.Equal(t, tc.audience, notice.Audience)
			assert.Equal(t, tc.summary, notice.Summary)
			assert.Equal(t, tc.email, notice.Email)
			assert.False(t, notice.Webhook)
		})
	}

	_, ok := n.Render(events.Event{Payload: "unknown"})
	assert.False(t, ok)
}

func TestNotificationHandlersLogNotices(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: "https://hooks.example.com/desk"})
	n.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: "t1",
		Payload:  events.TicketDeletedPayload{TicketNumber: "TKT-000007"},
	}))

	entries := logs.FilterMessage("notice").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Ticket TKT-000007 deleted", fields["summary"])
	assert.Equal(t, "https://hooks.example.com/desk", fields["webhook_url"])
}
