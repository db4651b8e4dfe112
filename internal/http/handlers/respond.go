package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"marketqa/internal/domain"
	applog "marketqa/internal/log"
	"marketqa/internal/repos"
	"marketqa/internal/services"
)

// respondErr maps the domain error taxonomy onto HTTP statuses. Every
// failure except a notification one blocks a success response; the
// internal cause never reaches the client on 5xx.
func respondErr(c *fiber.Ctx, action string, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		applog.Security(c, action+".validation.fail", map[string]any{"field": verr.Field})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
	}

	var terr *domain.TransitionError
	if errors.As(err, &terr) {
		applog.Info(c, action+".transition.blocked", map[string]any{"from": string(terr.From)})
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": terr.Error()})
	}

	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "record not found"})
	}
	if errors.Is(err, services.ErrNotOwner) || errors.Is(err, repos.ErrNotOwned) {
		applog.Security(c, action+".denied", nil)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your listing"})
	}

	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		if errors.Is(err, repos.ErrStale) {
			applog.Error(c, action+".stale", err, nil)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "record changed, refresh and retry"})
		}
		applog.Error(c, action+".store.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "store unavailable, try again"})
	}

	applog.Error(c, action+".fail", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
}
