package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/civcon/ussd-engine/internal/api"
	"github.com/civcon/ussd-engine/internal/client"
	"github.com/civcon/ussd-engine/internal/config"
	"github.com/civcon/ussd-engine/internal/dispatch"
	"github.com/civcon/ussd-engine/internal/engine"
	"github.com/civcon/ussd-engine/internal/locale"
	"github.com/civcon/ussd-engine/internal/moderation"
	"github.com/civcon/ussd-engine/internal/repo"
	"github.com/civcon/ussd-engine/internal/resolve"
	"github.com/civcon/ussd-engine/internal/scheduler"
	"github.com/civcon/ussd-engine/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("postgres unreachable: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	locales, err := locale.Load()
	if err != nil {
		log.Fatal(err)
	}

	denylists := make(map[string][]string)
	for _, lang := range locales.Languages() {
		denylists[lang] = locales.Offensive(lang)
	}
	moderator := moderation.NewClassifier(denylists,
		moderation.WithThreshold(cfg.Moderation.SpamThreshold))

	users := repo.NewPostgresUserRepo(db)
	messages := repo.NewPostgresMessageRepo(db)
	mps := repo.NewPostgresMPRepo(db)
	outbox := repo.NewPostgresOutboxRepo(db, cfg.Dispatcher.MaxAttempts)

	resolver := resolve.New(rdb, mps, cfg.Session.MPCacheTTL, cfg.Fallback.Name, cfg.Fallback.Phone)
	smsClient := client.NewSMSClient(cfg.SMS.GatewayURL, cfg.SMS.Username, cfg.SMS.APIKey, cfg.SMS.SenderID)
	dispatcher := dispatch.New(smsClient, outbox, cfg.SMS.ContentMax)

	eng := engine.New(engine.Deps{
		Store:     session.NewRedisStore(rdb, cfg.Session.TTL),
		Users:     users,
		Messages:  messages,
		Resolver:  resolver,
		Moderator: moderator,
		Notifier:  dispatcher,
		Locales:   locales,
	})

	retrySched, err := scheduler.New("sms-retry", cfg.Dispatcher.RetryInterval, func(ctx context.Context) {
		sent, failed := dispatcher.ProcessBatch(ctx, cfg.Dispatcher.BatchSize)
		if sent > 0 || failed > 0 {
			slog.Info("sms retry batch processed", "sent", sent, "failed", failed)
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	refreshSched, err := scheduler.New("mp-cache", cfg.Session.MPCacheTTL, func(ctx context.Context) {
		if err := resolver.Refresh(ctx); err != nil {
			slog.Warn("mp cache refresh failed", "err", err)
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	retrySched.Start()
	refreshSched.Start()

	h := api.NewHandler(eng, messages, map[string]*scheduler.Scheduler{
		"sms-retry": retrySched,
		"mp-cache":  refreshSched,
	})

	slog.Info("ussd engine listening",
		"addr", cfg.Server.Address,
		"sessionTTL", cfg.Session.TTL.String(),
		"retryInterval", cfg.Dispatcher.RetryInterval.String(),
	)
	log.Fatal(http.ListenAndServe(cfg.Server.Address, loggingMiddleware(api.Router(h))))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
