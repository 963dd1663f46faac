package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pantrylabs/pantrypoints/internal/archive"
	"github.com/pantrylabs/pantrypoints/internal/config"
	"github.com/pantrylabs/pantrypoints/internal/handler"
	"github.com/pantrylabs/pantrypoints/internal/middleware"
	"github.com/pantrylabs/pantrypoints/internal/store"
	ws "github.com/pantrylabs/pantrypoints/internal/websocket"
)

type Server struct {
	db  *sql.DB
	cfg *config.Config
	hub *ws.Hub

	userH             *handler.UserHandler
	pointsH           *handler.PointsHandler
	contributionH     *handler.ContributionHandler
	contributionTypeH *handler.ContributionTypeHandler
	rewardH           *handler.RewardHandler
	familyScoreH      *handler.FamilyScoreHandler
	familyMemberH     *handler.FamilyMemberHandler
	archiveH          *handler.ArchiveHandler

	rateLimiter    *middleware.RateLimiter
	archiveManager *archive.Manager
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	ledgerStore := store.NewLedgerStore(db)
	contributionTypeStore := store.NewContributionTypeStore(db)
	rewardStore := store.NewRewardStore(db)
	familyScoreStore := store.NewFamilyScoreStore(db)
	familyMemberStore := store.NewFamilyMemberStore(db)
	archiveStore := store.NewArchiveStore(db)

	archiveCfg := archive.Config{
		Enabled:    cfg.ArchiveEnabled,
		Interval:   cfg.ArchiveInterval,
		Passphrase: cfg.ArchivePassphrase,
		S3: archive.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
	}
	archiveMgr := archive.NewManager(archiveCfg, db, archiveStore, func(s archive.Status) {
		hub.Broadcast(ws.Message{
			Type:   "archive_status",
			Entity: "archive",
			Action: string(s.State),
			Extra: map[string]any{
				"error": s.Error,
			},
		})
	}, logger.With("component", "archive"))

	return &Server{
		db:                db,
		cfg:               cfg,
		hub:               hub,
		userH:             handler.NewUserHandler(userStore),
		pointsH:           handler.NewPointsHandler(ledgerStore, hub),
		contributionH:     handler.NewContributionHandler(ledgerStore, contributionTypeStore, hub),
		contributionTypeH: handler.NewContributionTypeHandler(contributionTypeStore),
		rewardH:           handler.NewRewardHandler(rewardStore, ledgerStore, hub),
		familyScoreH:      handler.NewFamilyScoreHandler(familyScoreStore, hub),
		familyMemberH:     handler.NewFamilyMemberHandler(familyMemberStore),
		archiveH:          handler.NewArchiveHandler(archiveMgr, archiveStore),
		rateLimiter:       middleware.NewRateLimiter(),
		archiveManager:    archiveMgr,
		logger:            logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// ArchiveManager returns the ledger archive manager.
func (s *Server) ArchiveManager() *archive.Manager {
	return s.archiveManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Users
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /api/users/{id}", s.userH.Delete)
	mux.HandleFunc("GET /api/leaderboard", s.userH.Leaderboard)

	// Points ledger
	mux.HandleFunc("GET /api/users/{id}/points", s.pointsH.GetBalance)
	mux.HandleFunc("GET /api/users/{id}/points/summary", s.pointsH.GetSummary)
	mux.HandleFunc("GET /api/users/{id}/transactions", s.pointsH.ListTransactions)
	mux.HandleFunc("POST /api/users/{id}/points/adjust", s.rateLimited(s.pointsH.Adjust))

	// Contributions
	mux.HandleFunc("POST /api/contributions", s.rateLimited(s.contributionH.Create))
	mux.HandleFunc("GET /api/contributions/pending", s.contributionH.ListPending)
	mux.HandleFunc("POST /api/contributions/{id}/review", s.rateLimited(s.contributionH.Review))
	mux.HandleFunc("GET /api/users/{id}/contributions", s.contributionH.ListByUser)

	// Contribution types
	mux.HandleFunc("GET /api/contribution-types", s.contributionTypeH.List)
	mux.HandleFunc("POST /api/contribution-types", s.contributionTypeH.Create)
	mux.HandleFunc("PUT /api/contribution-types/{id}", s.contributionTypeH.Update)
	mux.HandleFunc("DELETE /api/contribution-types/{id}", s.contributionTypeH.Delete)

	// Reward catalog + redemption
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rateLimited(s.rewardH.Redeem))
	mux.HandleFunc("GET /api/users/{id}/redemptions", s.rewardH.ListRedemptionsByUser)

	// Family scores
	mux.HandleFunc("POST /api/family-scores", s.familyScoreH.Create)
	mux.HandleFunc("GET /api/family-scores/lookup", s.familyScoreH.GetByEntity)
	mux.HandleFunc("GET /api/family-scores/favorites", s.familyScoreH.ListFavorites)
	mux.HandleFunc("GET /api/family-scores/blacklist", s.familyScoreH.ListBlacklisted)
	mux.HandleFunc("GET /api/family-scores/{id}", s.familyScoreH.Get)
	mux.HandleFunc("PUT /api/family-scores/{id}", s.familyScoreH.Update)
	mux.HandleFunc("DELETE /api/family-scores/{id}", s.familyScoreH.Delete)
	mux.HandleFunc("POST /api/family-scores/{id}/member-scores", s.familyScoreH.AddMemberScore)
	mux.HandleFunc("PUT /api/member-scores/{id}", s.familyScoreH.UpdateMemberScore)
	mux.HandleFunc("DELETE /api/member-scores/{id}", s.familyScoreH.DeleteMemberScore)

	// Family members
	mux.HandleFunc("GET /api/family-members", s.familyMemberH.List)
	mux.HandleFunc("POST /api/family-members", s.familyMemberH.Create)
	mux.HandleFunc("PUT /api/family-members/{id}", s.familyMemberH.Update)
	mux.HandleFunc("DELETE /api/family-members/{id}", s.familyMemberH.Delete)
	mux.HandleFunc("PUT /api/family-members/sort", s.familyMemberH.UpdateSortOrder)
	mux.HandleFunc("POST /api/family-members/{id}/pin", s.familyMemberH.SetPIN)
	mux.HandleFunc("DELETE /api/family-members/{id}/pin", s.familyMemberH.ClearPIN)
	mux.HandleFunc("POST /api/family-members/{id}/pin/verify", s.rateLimited(s.familyMemberH.VerifyPIN))

	// Ledger archive
	mux.HandleFunc("GET /api/archive/status", s.archiveH.Status)
	mux.HandleFunc("GET /api/archive/runs", s.archiveH.History)
	mux.HandleFunc("POST /api/archive/run", s.archiveH.RunNow)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
