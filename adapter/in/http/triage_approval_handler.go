package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/service/approval"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"
)

// ApprovalHandler serves the draft response review workflow.
type ApprovalHandler struct {
	approval *approval.Service
	log      zerolog.Logger
}

func NewApprovalHandler(approvalService *approval.Service, log zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		approval: approvalService,
		log:      log.With().Str("handler", "approval").Logger(),
	}
}

func (h *ApprovalHandler) Register(app fiber.Router) {
	app.Post("/emails/:id/responses", h.CreateDraft)
	app.Get("/responses", h.List)
	app.Get("/responses/counts", h.Counts)
	app.Get("/responses/:id", h.Get)
	app.Post("/responses/:id/approve", h.Approve)
	app.Post("/responses/:id/reject", h.Reject)
	app.Post("/responses/:id/send", h.Send)
	app.Put("/responses/:id", h.Edit)
}

// CreateDraft generates a draft reply for an email and stores it in the
// pending state.
func (h *ApprovalHandler) CreateDraft(c *fiber.Ctx) error {
	draft, err := h.approval.CreateDraft(c.Context(), c.Params("id"))
	if err != nil {
		if apperr.IsAppError(err) {
			return AppErrorResponse(c, err)
		}
		h.log.Error().Err(err).Msg("failed to create draft response")
		return response.InternalError(c, "failed to create draft response")
	}
	return response.Created(c, draft)
}

func (h *ApprovalHandler) List(c *fiber.Ctx) error {
	pagination := response.GetPagination(c, 20, 100)

	status := domain.ResponseStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		return response.BadRequest(c, "invalid status: "+string(status))
	}

	drafts, total, err := h.approval.List(c.Context(), status, pagination.Offset, pagination.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list responses")
		return response.InternalError(c, "failed to list responses")
	}
	if drafts == nil {
		drafts = []*domain.DraftResponse{}
	}

	return response.OKWithMeta(c, drafts, &response.Meta{
		Total:    int(total),
		Page:     pagination.Page,
		PageSize: pagination.Limit,
		HasMore:  int64(pagination.Offset+len(drafts)) < total,
	})
}

func (h *ApprovalHandler) Counts(c *fiber.Ctx) error {
	counts, err := h.approval.StatusCounts(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count responses")
		return response.InternalError(c, "failed to count responses")
	}
	return response.OK(c, counts)
}

func (h *ApprovalHandler) Get(c *fiber.Ctx) error {
	draft, err := h.approval.Get(c.Context(), c.Params("id"))
	if err != nil {
		if apperr.IsAppError(err) {
			return AppErrorResponse(c, err)
		}
		h.log.Error().Err(err).Msg("failed to load response")
		return response.InternalError(c, "failed to load response")
	}
	return response.OK(c, draft)
}

type approveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

func (h *ApprovalHandler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	draft, err := h.approval.Approve(c.Context(), c.Params("id"), req.ApprovedBy)
	return h.transitionResult(c, draft, err, "approve")
}

func (h *ApprovalHandler) Reject(c *fiber.Ctx) error {
	draft, err := h.approval.Reject(c.Context(), c.Params("id"))
	return h.transitionResult(c, draft, err, "reject")
}

func (h *ApprovalHandler) Send(c *fiber.Ctx) error {
	draft, err := h.approval.Send(c.Context(), c.Params("id"))
	return h.transitionResult(c, draft, err, "send")
}

type editRequest struct {
	ResponseText string `json:"response_text"`
}

func (h *ApprovalHandler) Edit(c *fiber.Ctx) error {
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.ResponseText) == "" {
		return response.BadRequest(c, "response_text is required")
	}

	draft, err := h.approval.EditText(c.Context(), c.Params("id"), req.ResponseText)
	return h.transitionResult(c, draft, err, "edit")
}

func (h *ApprovalHandler) transitionResult(c *fiber.Ctx, draft *domain.DraftResponse, err error, action string) error {
	if err != nil {
		if apperr.IsAppError(err) {
			return AppErrorResponse(c, err)
		}
		h.log.Error().Err(err).Str("action", action).Msg("response transition failed")
		return response.InternalError(c, "response transition failed")
	}
	return response.OK(c, draft)
}
