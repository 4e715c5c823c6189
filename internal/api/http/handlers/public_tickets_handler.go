package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// PublicTicketsHandler serves unauthenticated customer endpoints. Access to an
// existing ticket is granted by ticket number plus email.
type PublicTicketsHandler struct {
	tickets *service.TicketService
	gate    *service.ReplyGate
}

// NewPublicTicketsHandler constructs handler.
func NewPublicTicketsHandler(tickets *service.TicketService, gate *service.ReplyGate) *PublicTicketsHandler {
	return &PublicTicketsHandler{tickets: tickets, gate: gate}
}

// SubmitTicket POST /api/tickets/submit.
func (h *PublicTicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uploads, closeAll, err := multipartUploads(c)
	if err != nil {
		return err
	}
	defer closeAll()

	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Subject:       req.Subject,
		Description:   req.Description,
		Priority:      req.Priority,
		Attachments:   uploads,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// TrackTicket POST /api/tickets/track.
func (h *PublicTicketsHandler) TrackTicket(c *fiber.Ctx) error {
	var req dto.TrackTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.GetByCapability(c.UserContext(), req.TicketNumber, req.CustomerEmail)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// PublicReplies POST /api/replies/track/:ticketNumber.
func (h *PublicTicketsHandler) PublicReplies(c *fiber.Ctx) error {
	var req dto.CustomerEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, replies, err := h.tickets.ListRepliesByCapability(c.UserContext(), c.Params("ticketNumber"), req.CustomerEmail)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReplyList(replies)})
}

// SendCustomerReply POST /api/replies/customer/:ticketNumber.
func (h *PublicTicketsHandler) SendCustomerReply(c *fiber.Ctx) error {
	var req dto.CustomerReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reply, deduplicated, err := h.gate.SendCustomerReply(c.UserContext(), c.Params("ticketNumber"), req.CustomerEmail, req.Message)
	if err != nil {
		return err
	}
	return replySubmitted(c, reply, deduplicated)
}

// multipartUploads opens every file posted under "images". The returned func
// closes them.
func multipartUploads(c *fiber.Ctx) ([]storage.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, apperrors.NewValidationError("invalid multipart payload", nil)
	}

	files := form.File["images"]
	uploads := make([]storage.Upload, 0, len(files))
	closers := make([]io.Closer, 0, len(files))
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, apperrors.NewValidationError("unreadable attachment", map[string]any{"file": fh.Filename})
		}
		closers = append(closers, f)
		uploads = append(uploads, storage.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
