package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/response"
)

// EmailHandler serves processed email records.
type EmailHandler struct {
	emails out.EmailRepository
	log    zerolog.Logger
}

func NewEmailHandler(emails out.EmailRepository, log zerolog.Logger) *EmailHandler {
	return &EmailHandler{
		emails: emails,
		log:    log.With().Str("handler", "email").Logger(),
	}
}

func (h *EmailHandler) Register(app fiber.Router) {
	app.Get("/emails", h.List)
	app.Get("/emails/stats", h.Stats)
	app.Get("/emails/:id", h.Get)
}

// List returns email records filtered by the triage fields, newest
// first. Filter params accept comma-separated values.
func (h *EmailHandler) List(c *fiber.Ctx) error {
	pagination := response.GetPagination(c, 20, 100)

	filters, err := parseEmailFilters(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	query := out.EmailQuery{
		Filters: filters,
		Offset:  pagination.Offset,
		Limit:   pagination.Limit,
	}

	emails, total, err := h.emails.Find(c.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list emails")
		return response.InternalError(c, "failed to list emails")
	}
	if emails == nil {
		emails = []*domain.EmailRecord{}
	}

	return response.OKWithMeta(c, emails, &response.Meta{
		Total:    int(total),
		Page:     pagination.Page,
		PageSize: pagination.Limit,
		HasMore:  int64(pagination.Offset+len(emails)) < total,
	})
}

func (h *EmailHandler) Get(c *fiber.Ctx) error {
	email, err := h.emails.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load email")
		return response.InternalError(c, "failed to load email")
	}
	if email == nil {
		return response.NotFound(c, "email not found")
	}
	return response.OK(c, email)
}

// Stats returns record counts grouped by the triage fields.
func (h *EmailHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.emails.Stats(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to aggregate email stats")
		return response.InternalError(c, "failed to aggregate email stats")
	}
	return response.OK(c, stats)
}

func parseEmailFilters(c *fiber.Ctx) (out.EmailFilters, error) {
	var filters out.EmailFilters

	for _, v := range splitParam(c.Query("priority")) {
		p := domain.Priority(v)
		if !p.IsValid() {
			return filters, fiber.NewError(fiber.StatusBadRequest, "invalid priority: "+v)
		}
		filters.Priority = append(filters.Priority, p)
	}
	for _, v := range splitParam(c.Query("sentiment")) {
		s := domain.Sentiment(v)
		if !s.IsValid() {
			return filters, fiber.NewError(fiber.StatusBadRequest, "invalid sentiment: "+v)
		}
		filters.Sentiment = append(filters.Sentiment, s)
	}
	for _, v := range splitParam(c.Query("classification")) {
		cl := domain.Classification(v)
		if !cl.IsValid() {
			return filters, fiber.NewError(fiber.StatusBadRequest, "invalid classification: "+v)
		}
		filters.Classification = append(filters.Classification, cl)
	}

	if v := c.Query("filtered"); v != "" {
		b := v == "true" || v == "1"
		filters.Filtered = &b
	}

	return filters, nil
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
