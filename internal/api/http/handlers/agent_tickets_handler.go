package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// AgentTicketsHandler handles agent ticket and reply endpoints.
type AgentTicketsHandler struct {
	tickets *service.TicketService
	gate    *service.ReplyGate
	stats   *service.StatsService
}

// NewAgentTicketsHandler constructs handler.
func NewAgentTicketsHandler(tickets *service.TicketService, gate *service.ReplyGate, stats *service.StatsService) *AgentTicketsHandler {
	return &AgentTicketsHandler{tickets: tickets, gate: gate, stats: stats}
}

// ListTickets GET /api/tickets.
func (h *AgentTicketsHandler) ListTickets(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	tickets, err := h.tickets.ListTickets(c.UserContext(), service.TicketListFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: page, PageSize: pageSize, Count: len(items)},
	})
}

// Stats GET /api/tickets/stats/overview.
func (h *AgentTicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.ComputeStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketStatsResponse(stats)})
}

// GetTicket GET /api/tickets/:id.
func (h *AgentTicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *AgentTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	agent, err := agentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.SetStatus(c.UserContext(), c.Params("id"), agent.Actor(), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdatePriority PUT /api/tickets/:id/priority.
func (h *AgentTicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	agent, err := agentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.SetPriority(c.UserContext(), c.Params("id"), agent.Actor(), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *AgentTicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	agent, err := agentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), agent.Actor(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "deleted": true}})
}

// ListReplies GET /api/replies/ticket/:id.
func (h *AgentTicketsHandler) ListReplies(c *fiber.Ctx) error {
	replies, err := h.tickets.ListReplies(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReplyList(replies)})
}

// SendAgentReply POST /api/replies/ticket/:id.
func (h *AgentTicketsHandler) SendAgentReply(c *fiber.Ctx) error {
	agent, err := agentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AgentReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reply, deduplicated, err := h.gate.SendAgentReply(c.UserContext(), agent, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return replySubmitted(c, reply, deduplicated)
}

// DeleteReply DELETE /api/replies/:id.
func (h *AgentTicketsHandler) DeleteReply(c *fiber.Ctx) error {
	agent, err := agentPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.DeleteReply(c.UserContext(), agent.Actor(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":      c.Params("id"),
		"deleted": true,
		"ticket":  dto.NewTicketResponse(ticket),
	}})
}

// replySubmitted answers 201 for a new reply and 200 when an earlier identical
// submission was returned.
func replySubmitted(c *fiber.Ctx, reply *domain.Reply, deduplicated bool) error {
	status := http.StatusCreated
	if deduplicated {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.ReplySubmissionResponse{
		ReplyResponse: dto.NewReplyResponse(reply),
		Deduplicated:  deduplicated,
	}})
}
