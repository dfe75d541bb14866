package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/audit"
	"messaging-platform/internal/auth"
	"messaging-platform/internal/classifier"
	"messaging-platform/internal/config"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/engine"
	"messaging-platform/internal/httpapi"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/reporting"
	"messaging-platform/internal/responder"
	"messaging-platform/internal/tenants"
	"messaging-platform/internal/transport"
	"messaging-platform/pkg/logger"
	"messaging-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gen, err := ai.NewGenerator(ai.Options{
		Provider: ai.Provider(cfg.AI.Provider),
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		log.Error("ai init failed", "err", err)
		os.Exit(1)
	}

	tenantSvc := tenants.NewService(tenants.NewPostgresRepo(db), cfg.Engine.DefaultRegion)
	convSvc := conversations.NewService(conversations.NewPostgresRepo(db))
	msgSvc := messages.NewService(messages.NewPostgresRepo(db))
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	sender := transport.NewTwilioTransport(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.SendRatePerSecond)

	eng, err := engine.New(engine.Deps{
		Tenants:       tenantSvc,
		Contacts:      contacts.NewService(contacts.NewPostgresRepo(db), cfg.Engine.DefaultRegion),
		Conversations: convSvc,
		Messages:      msgSvc,
		Classifier:    classifier.New(gen, cfg.AI.ClassifierTimeout, log),
		Responder:     responder.New(gen, cfg.AI.ResponderTimeout, log),
		Dispatcher:    dispatch.New(sender, msgSvc, convSvc),
		Audit:         auditSvc,
		Alerter:       engine.NewRedisAlerter(rdb, ""),
	}, engine.Options{HistoryWindow: cfg.Engine.HistoryWindow})
	if err != nil {
		log.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:   authManager,
		authMW: auth.RequireAccessToken(authManager),
		webhook: httpapi.TwilioWebhook{
			Tenants:           tenantSvc,
			Engine:            eng,
			Guard:             httpapi.NewRedisGuard(rdb, cfg.Inbound.ConcurrencyLimit, cfg.Inbound.DedupTTL),
			AuthToken:         cfg.Twilio.AuthToken,
			PublicBaseURL:     cfg.Twilio.PublicBaseURL,
			ValidateSignature: cfg.Twilio.ValidateSignature,
		},
		handlers: httpapi.Handlers{Agent: eng, Reports: reporting.NewService(convSvc), Audit: auditSvc},
		ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Inbound handling runs two model calls inline.
		WriteTimeout: cfg.AI.ClassifierTimeout + cfg.AI.ResponderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
