package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"marketqa/internal/domain"
	applog "marketqa/internal/log"
	"marketqa/internal/services"
	"marketqa/internal/validate"
)

// ModeratorHandler exposes the review console: the full materialized view
// plus the moderator-gated transitions.
type ModeratorHandler struct {
	Engine *services.TransitionEngine
	View   *services.Materializer // moderator scope: all records
}

// GET /moderator/queue
func (h *ModeratorHandler) Queue(c *fiber.Ctx) error {
	b, err := h.View.Reload(c.UserContext())
	if err != nil {
		return respondErr(c, "moderator.queue", err)
	}
	return c.JSON(fiber.Map{"qa": b})
}

// POST /moderator/queue/refresh
func (h *ModeratorHandler) Refresh(c *fiber.Ctx) error {
	return h.Queue(c)
}

type decisionReq struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

func (h *ModeratorHandler) decide(c *fiber.Ctx, action string, op func(ctx context.Context, moderatorID, id string, req decisionReq) (*domain.QARecord, error)) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid listing id"})
	}
	var req decisionReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
		}
	}

	rec, err := h.View.Apply(c.UserContext(), func(ctx context.Context) (*domain.QARecord, error) {
		return op(ctx, u.ID, id, req)
	})
	if err != nil {
		return respondErr(c, action, err)
	}
	applog.Audit(c, action, map[string]any{"listing_id": id, "status": string(rec.Status), "note": req.Note})
	return c.JSON(rec)
}

// POST /moderator/listings/:id/approve-sample
func (h *ModeratorHandler) ApproveForSample(c *fiber.Ctx) error {
	return h.decide(c, "moderator.approve_sample", func(ctx context.Context, mod, id string, req decisionReq) (*domain.QARecord, error) {
		return h.Engine.ApproveForSample(ctx, mod, id, req.Note)
	})
}

// POST /moderator/listings/:id/reject-digital
func (h *ModeratorHandler) RejectDigital(c *fiber.Ctx) error {
	return h.decide(c, "moderator.reject_digital", func(ctx context.Context, mod, id string, req decisionReq) (*domain.QARecord, error) {
		return h.Engine.RejectDigital(ctx, mod, id, req.Reason)
	})
}

// POST /moderator/listings/:id/pass-quality
func (h *ModeratorHandler) PassQuality(c *fiber.Ctx) error {
	return h.decide(c, "moderator.pass_quality", func(ctx context.Context, mod, id string, req decisionReq) (*domain.QARecord, error) {
		return h.Engine.PassQuality(ctx, mod, id, req.Note)
	})
}

// POST /moderator/listings/:id/fail-quality
func (h *ModeratorHandler) FailQuality(c *fiber.Ctx) error {
	return h.decide(c, "moderator.fail_quality", func(ctx context.Context, mod, id string, req decisionReq) (*domain.QARecord, error) {
		return h.Engine.FailQuality(ctx, mod, id, req.Reason)
	})
}

// POST /moderator/listings/:id/request-revision
func (h *ModeratorHandler) RequestRevision(c *fiber.Ctx) error {
	return h.decide(c, "moderator.request_revision", func(ctx context.Context, mod, id string, req decisionReq) (*domain.QARecord, error) {
		return h.Engine.RequestRevision(ctx, mod, id, req.Reason)
	})
}
