package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"triage_server/core/service/search"
	"triage_server/pkg/response"
)

// SearchHandler serves natural-language search over email records.
type SearchHandler struct {
	search *search.Service
	log    zerolog.Logger
}

func NewSearchHandler(searchService *search.Service, log zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		search: searchService,
		log:    log.With().Str("handler", "search").Logger(),
	}
}

func (h *SearchHandler) Register(app fiber.Router) {
	app.Get("/search", h.Search)
	app.Get("/search/interpret", h.Interpret)
	app.Get("/search/suggestions", h.Suggestions)
}

// Search runs the semantic/text/filter search chain. Explicit filter
// params are union-merged with filters interpreted from the query.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")

	filters, err := parseEmailFilters(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 0)

	result, err := h.search.Search(c.Context(), query, filters, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("search failed")
		return response.InternalError(c, "search failed")
	}
	return response.OK(c, result)
}

// Interpret returns the structured intent extracted from a query
// without running the search.
func (h *SearchHandler) Interpret(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return response.BadRequest(c, "missing query parameter q")
	}
	intent := h.search.Interpret(c.Context(), query)
	return response.OK(c, intent)
}

// Suggestions returns query completions for a partial search input.
func (h *SearchHandler) Suggestions(c *fiber.Ctx) error {
	query := c.Query("q")
	suggestions := h.search.Suggestions(query)
	if suggestions == nil {
		suggestions = []string{}
	}
	return response.OK(c, fiber.Map{"suggestions": suggestions})
}
