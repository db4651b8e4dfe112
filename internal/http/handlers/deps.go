package handlers

import (
	"marketqa/internal/config"
	"marketqa/internal/repos"
	"marketqa/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	SellerHandler    *SellerHandler
	ModeratorHandler *ModeratorHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	recordRepo := repos.NewQARecordRepo(db)
	listingRepo := repos.NewListingRepo(db)
	notifRepo := repos.NewNotificationRepo(db)

	notifier := services.NewOutboxNotifier(notifRepo)
	engine := services.NewTransitionEngine(recordRepo, notifier, cfg.OpTimeout)
	moderatorView := services.NewMaterializer(recordRepo, services.ModeratorScope())

	return &Deps{
		SellerHandler: &SellerHandler{
			Engine:   engine,
			Store:    recordRepo,
			Listings: listingRepo,
			Notifs:   notifRepo,
		},
		ModeratorHandler: &ModeratorHandler{
			Engine: engine,
			View:   moderatorView,
		},
	}
}
