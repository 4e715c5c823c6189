package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/dedup"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository/memstore"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type ticketView struct {
	ID           string `json:"id"`
	TicketNumber string `json:"ticket_number"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	LastReplyBy  string `json:"last_reply_by"`
	Attachments  []struct {
		FileName string `json:"file_name"`
	} `json:"attachments"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	repos := memstore.New().Repos()
	retry := service.RetryPolicy{MaxRetries: 1, Initial: time.Millisecond, MaxInterval: time.Millisecond}

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:              repos.Tickets,
		ReplyRepo:               repos.Replies,
		Locker:                  repos.Locker,
		Attachments:             storage.NewMemoryStore(),
		Dispatcher:              events.NewInMemoryDispatcher(),
		Logger:                  logger,
		Retry:                   retry,
		AttachmentLimits:        config.AttachmentConfig{MaxCount: 3, MaxSizeBytes: 1 << 20},
		AllowCustomerOnResolved: true,
	})
	gate := service.NewReplyGate(service.ReplyGateDependencies{
		Tickets: tickets,
		Store:   dedup.NewMemoryStore(),
		Window:  time.Minute,
		Logger:  logger,
	})
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            bcrypt.MinCost,
		RegistrationEnabled:   true,
	}, service.AuthDependencies{AgentRepo: repos.Agents, Retry: retry})
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-desk", "test", repos.Health, metrics),
		Public:         handlers.NewPublicTicketsHandler(tickets, gate),
		AgentTickets:   handlers.NewAgentTicketsHandler(tickets, gate, service.NewStatsService(repos.Tickets, retry)),
		Agents:         handlers.NewAgentsHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repos.Agents),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func submitTicket(t *testing.T, app *fiber.App) ticketView {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/tickets/submit", "", map[string]string{
		"customer_name":  "Jane Doe",
		"customer_email": "jane@example.com",
		"subject":        "Cannot log in",
		"description":    "The login page spins forever.",
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))
	var ticket ticketView
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &ticket))
	return ticket
}

func registerAgent(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Sam",
		"email":    "sam@support.test",
		"password": "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))
	var data struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &data))
	require.NotEmpty(t, data.Auth.Token)
	return data.Auth.Token
}

func TestSubmitTicketReturnsCreated(t *testing.T) {
	app := newTestApp(t)
	ticket := submitTicket(t, app)

	assert.Equal(t, "TKT-000001", ticket.TicketNumber)
	assert.Equal(t, "New", ticket.Status)
	assert.Equal(t, "Medium", ticket.Priority)
	assert.Equal(t, "None", ticket.LastReplyBy)
}

func TestSubmitTicketValidationDetails(t *testing.T) {
	app := newTestApp(t)
	status, body := doJSON(t, app, fiber.MethodPost, "/api/tickets/submit", "", map[string]string{
		"customer_name":  "Jane",
		"customer_email": "not-an-email",
	})
	require.Equal(t, fiber.StatusBadRequest, status)
	env := decode(t, body)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	fields, ok := env.Error.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "customer_email")
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "description")
}

func TestTrackTicketDoesNotRevealWhichCredentialFailed(t *testing.T) {
	app := newTestApp(t)
	ticket := submitTicket(t, app)

	status, ok := doJSON(t, app, fiber.MethodPost, "/api/tickets/track", "", map[string]string{
		"ticket_number": ticket.TicketNumber, "customer_email": "JANE@example.com",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(ok), ticket.ID)

	wrongEmailStatus, wrongEmail := doJSON(t, app, fiber.MethodPost, "/api/tickets/track", "", map[string]string{
		"ticket_number": ticket.TicketNumber, "customer_email": "mallory@example.com",
	})
	unknownStatus, unknown := doJSON(t, app, fiber.MethodPost, "/api/tickets/track", "", map[string]string{
		"ticket_number": "TKT-999999", "customer_email": "jane@example.com",
	})
	assert.Equal(t, fiber.StatusNotFound, wrongEmailStatus)
	assert.Equal(t, wrongEmailStatus, unknownStatus)
	assert.Equal(t, string(unknown), string(wrongEmail))

	_, repliesWrong := doJSON(t, app, fiber.MethodPost, "/api/replies/track/"+ticket.TicketNumber, "", map[string]string{
		"customer_email": "mallory@example.com",
	})
	assert.Equal(t, string(unknown), string(repliesWrong))
}

func TestCustomerReplyDeduplicated(t *testing.T) {
	app := newTestApp(t)
	ticket := submitTicket(t, app)
	path := "/api/replies/customer/" + ticket.TicketNumber
	payload := map[string]string{"customer_email": "jane@example.com", "message": "Any update?"}

	status, first := doJSON(t, app, fiber.MethodPost, path, "", payload)
	require.Equal(t, fiber.StatusCreated, status, string(first))
	status, second := doJSON(t, app, fiber.MethodPost, path, "", payload)
	require.Equal(t, fiber.StatusOK, status, string(second))

	var a, b struct {
		ID           string `json:"id"`
		Deduplicated bool   `json:"deduplicated"`
	}
	require.NoError(t, json.Unmarshal(decode(t, first).Data, &a))
	require.NoError(t, json.Unmarshal(decode(t, second).Data, &b))
	assert.False(t, a.Deduplicated)
	assert.True(t, b.Deduplicated)
	assert.Equal(t, a.ID, b.ID)

	_, list := doJSON(t, app, fiber.MethodPost, "/api/replies/track/"+ticket.TicketNumber, "", map[string]string{
		"customer_email": "jane@example.com",
	})
	var replies []json.RawMessage
	require.NoError(t, json.Unmarshal(decode(t, list).Data, &replies))
	assert.Len(t, replies, 1)
}

func TestAgentRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)
	cases := []struct{ method, path string }{
		{fiber.MethodGet, "/api/tickets"},
		{fiber.MethodGet, "/api/tickets/stats/overview"},
		{fiber.MethodGet, "/api/tickets/some-id"},
		{fiber.MethodPut, "/api/tickets/some-id/status"},
		{fiber.MethodDelete, "/api/replies/some-id"},
		{fiber.MethodPost, "/api/replies/ticket/some-id"},
		{fiber.MethodGet, "/api/auth/me"},
		{fiber.MethodGet, "/api/metrics"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, body := doJSON(t, app, tc.method, tc.path, "", nil)
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Equal(t, "UNAUTHORIZED", decode(t, body).Error.Code)
		})
	}

	status, _ := doJSON(t, app, fiber.MethodGet, "/api/tickets", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAgentWorkflow(t *testing.T) {
	app := newTestApp(t)
	ticket := submitTicket(t, app)
	token := registerAgent(t, app)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/replies/ticket/"+ticket.ID, token, map[string]string{
		"message": "Please clear your cookies.",
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, body = doJSON(t, app, fiber.MethodGet, "/api/tickets/"+ticket.ID, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var got ticketView
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &got))
	assert.Equal(t, "Agent", got.LastReplyBy)

	status, body = doJSON(t, app, fiber.MethodPut, "/api/tickets/"+ticket.ID+"/status", token, map[string]string{"status": "Resolved"})
	require.Equal(t, fiber.StatusOK, status, string(body))

	status, body = doJSON(t, app, fiber.MethodPut, "/api/tickets/"+ticket.ID+"/priority", token, map[string]string{"priority": "Urgent"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, body).Error.Code)

	status, body = doJSON(t, app, fiber.MethodGet, "/api/tickets?status=Resolved&page_size=10", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed struct {
		Data []ticketView `json:"data"`
		Meta struct {
			PageSize int `json:"page_size"`
			Count    int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Equal(t, 1, listed.Meta.Count)
	assert.Equal(t, 10, listed.Meta.PageSize)

	status, body = doJSON(t, app, fiber.MethodGet, "/api/tickets/stats/overview", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats struct {
		Total    int64 `json:"total"`
		Resolved int64 `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Resolved)

	status, _ = doJSON(t, app, fiber.MethodDelete, "/api/tickets/"+ticket.ID, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, body = doJSON(t, app, fiber.MethodGet, "/api/tickets/"+ticket.ID, token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode(t, body).Error.Code)
}

func TestSubmitTicketMultipart(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"customer_name":  "Jane Doe",
		"customer_email": "jane@example.com",
		"subject":        "Broken layout",
		"description":    "See screenshot.",
		"priority":       "High",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("images", "screen.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets/submit", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var ticket ticketView
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &ticket))
	assert.Equal(t, "High", ticket.Priority)
	require.Len(t, ticket.Attachments, 1)
	assert.Equal(t, "screen.png", ticket.Attachments[0].FileName)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app := newTestApp(t)
	status, body := doJSON(t, app, fiber.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.True(t, strings.Contains(string(body), `"code":"NOT_FOUND"`), string(body))
}

func TestHealthReady(t *testing.T) {
	app := newTestApp(t)
	status, body := doJSON(t, app, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), `"store":"ok"`)
}
