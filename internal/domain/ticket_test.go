package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTicketNumber(t *testing.T) {
	assert.Equal(t, "TKT-000001", FormatTicketNumber(1))
	assert.Equal(t, "TKT-123456", FormatTicketNumber(123456))
	assert.Equal(t, "TKT-1234567", FormatTicketNumber(1234567))
}

func TestParseTicketStatus(t *testing.T) {
	s, ok := ParseTicketStatus(" resolved ")
	assert.True(t, ok)
	assert.Equal(t, TicketStatusResolved, s)

	_, ok = ParseTicketStatus("Closed")
	assert.False(t, ok)
}

func TestParseTicketPriority(t *testing.T) {
	p, ok := ParseTicketPriority("HIGH")
	assert.True(t, ok)
	assert.Equal(t, TicketPriorityHigh, p)

	_, ok = ParseTicketPriority("Urgent")
	assert.False(t, ok)
}

func TestLastReplyByFor(t *testing.T) {
	assert.Equal(t, LastReplyByCustomer, LastReplyByFor(SenderCustomer))
	assert.Equal(t, LastReplyByAgent, LastReplyByFor(SenderAgent))
	assert.Equal(t, LastReplyByNone, LastReplyByFor(SenderType("bot")))
}

func TestTicketCloneDoesNotShareAttachments(t *testing.T) {
	orig := &Ticket{ID: "t1", Attachments: []Attachment{{Key: "a"}}}
	cp := orig.Clone()
	cp.Attachments[0].Key = "b"
	assert.Equal(t, "a", orig.Attachments[0].Key)
}

func TestCustomerActorLowercasesEmail(t *testing.T) {
	tk := &Ticket{CustomerName: "Jane", CustomerEmail: " Jane@X.com "}
	actor := tk.CustomerActor()
	assert.Equal(t, SenderCustomer, actor.Kind)
	assert.Equal(t, "jane@x.com", actor.Identity)
	assert.Equal(t, "Jane", actor.Name)
	assert.False(t, actor.IsAgent())
}
