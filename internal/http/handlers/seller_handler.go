package handlers

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"

	"marketqa/internal/domain"
	applog "marketqa/internal/log"
	"marketqa/internal/repos"
	"marketqa/internal/services"
	"marketqa/internal/validate"
)

type SellerHandler struct {
	Engine   *services.TransitionEngine
	Store    services.RecordStore
	Listings *repos.ListingRepo
	Notifs   *repos.NotificationRepo

	mu   sync.Mutex
	mats map[string]*services.Materializer
}

// mat returns the seller's own materializer, creating it on first use.
// Each seller keeps an independent cached view over their records.
func (h *SellerHandler) mat(sellerID string) *services.Materializer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mats == nil {
		h.mats = make(map[string]*services.Materializer)
	}
	m, ok := h.mats[sellerID]
	if !ok {
		m = services.NewMaterializer(h.Store, services.SellerScope(sellerID))
		h.mats[sellerID] = m
	}
	return m
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

type submitReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImagesJSON  string  `json:"imagesJson"`
}

// POST /seller/listings
func (h *SellerHandler) Submit(c *fiber.Ctx) error {
	u := currentUser(c)
	var req submitReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	rec, err := h.mat(u.ID).Apply(c.UserContext(), func(ctx context.Context) (*domain.QARecord, error) {
		return h.Engine.Submit(ctx, u.ID, services.NewListing{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Price:       req.Price,
			Stock:       req.Stock,
			ImagesJSON:  req.ImagesJSON,
		})
	})
	if err != nil {
		return respondErr(c, "seller.submit", err)
	}
	applog.Audit(c, "seller.submit", map[string]any{"listing_id": rec.ID})
	return c.Status(fiber.StatusCreated).JSON(rec)
}

type sampleReq struct {
	LogisticsMethod  string `json:"logisticsMethod"`
	LogisticsAddress string `json:"logisticsAddress"`
	LogisticsNotes   string `json:"logisticsNotes"`
}

// POST /seller/listings/:id/sample
func (h *SellerHandler) SubmitSample(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid listing id"})
	}
	var req sampleReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	rec, err := h.mat(u.ID).Apply(c.UserContext(), func(ctx context.Context) (*domain.QARecord, error) {
		return h.Engine.SubmitSample(ctx, u.ID, id, req.LogisticsMethod, req.LogisticsAddress, req.LogisticsNotes)
	})
	if err != nil {
		return respondErr(c, "seller.sample", err)
	}
	applog.Audit(c, "seller.sample", map[string]any{"listing_id": id, "method": rec.LogisticsMethod})
	return c.JSON(rec)
}

type editReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// PUT /seller/listings/:id — content edit; never touches QA status.
func (h *SellerHandler) Edit(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid listing id"})
	}
	var req editReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	title, ok := validate.Title(req.Title)
	if !ok || !validate.Price(req.Price) || req.Stock < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid listing attributes"})
	}

	if err := h.Listings.UpdateContent(c.UserContext(), u.ID, id, title, req.Description, req.Category, req.Price, req.Stock); err != nil {
		return respondErr(c, "seller.edit", err)
	}
	applog.Audit(c, "seller.edit", map[string]any{"listing_id": id})
	l, err := h.Listings.Get(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "seller.edit", err)
	}
	return c.JSON(l)
}

// GET /seller/listings — reload-on-read keeps the cached view honest
// whenever the seller opens their screen.
func (h *SellerHandler) View(c *fiber.Ctx) error {
	u := currentUser(c)
	b, err := h.mat(u.ID).Reload(c.UserContext())
	if err != nil {
		return respondErr(c, "seller.view", err)
	}
	listings, err := h.Listings.ListBySeller(c.UserContext(), u.ID)
	if err != nil {
		return respondErr(c, "seller.view", err)
	}
	return c.JSON(fiber.Map{"listings": listings, "qa": b})
}

// POST /seller/listings/refresh — the explicit manual refresh action.
func (h *SellerHandler) Refresh(c *fiber.Ctx) error {
	u := currentUser(c)
	b, err := h.mat(u.ID).Reload(c.UserContext())
	if err != nil {
		return respondErr(c, "seller.refresh", err)
	}
	return c.JSON(fiber.Map{"qa": b})
}

// GET /seller/notifications
func (h *SellerHandler) Notifications(c *fiber.Ctx) error {
	u := currentUser(c)
	rows, err := h.Notifs.ListBySeller(c.UserContext(), u.ID, 50)
	if err != nil {
		return respondErr(c, "seller.notifications", err)
	}
	return c.JSON(fiber.Map{"notifications": rows})
}
