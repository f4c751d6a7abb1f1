package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"bazaar/internal/audit"
	"bazaar/internal/capability"
	httpapi "bazaar/internal/http"
	"bazaar/internal/notify"
	onboardinghandler "bazaar/internal/onboarding/handler"
	onboardingmetrics "bazaar/internal/onboarding/metrics"
	onboardingservice "bazaar/internal/onboarding/service"
	appstore "bazaar/internal/onboarding/store/application"
	notestore "bazaar/internal/onboarding/store/note"
	stepstore "bazaar/internal/onboarding/store/step"
	"bazaar/internal/persona/dedupe"
	personahandler "bazaar/internal/persona/handler"
	personametrics "bazaar/internal/persona/metrics"
	"bazaar/internal/persona/provider"
	personaservice "bazaar/internal/persona/service"
	verstore "bazaar/internal/persona/store/verification"
	"bazaar/internal/platform/config"
	"bazaar/internal/platform/httpserver"
	"bazaar/internal/platform/logger"
	platformredis "bazaar/internal/platform/redis"
	"bazaar/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Every backend is
// optional in dev mode: without Postgres the stores are in-memory, without
// Redis dedupe is in-process, without Kafka events only reach the log, and
// without a provider base URL verification runs against the local sandbox.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var checks []httpapi.HealthCheck

	// Stores. Postgres when configured, process-local otherwise.
	var (
		apps       onboardingservice.ApplicationStore
		steps      onboardingservice.StepStore
		notes      onboardingservice.NoteStore
		verifs     personaservice.VerificationStore
		auditStore audit.Store
		runner     tx.Runner
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		apps = appstore.NewPostgres(db)
		steps = stepstore.NewPostgres(db)
		notes = notestore.NewPostgres(db)
		verifs = verstore.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		runner = tx.NewSQLRunner(db, cfg.TxTimeout)
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Probe: db.PingContext})
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		apps = appstore.NewInMemory()
		steps = stepstore.NewInMemory()
		notes = notestore.NewInMemory()
		verifs = verstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		runner = tx.NewMemoryRunner(cfg.TxTimeout)
	}

	// Webhook delivery dedupe.
	var deduper dedupe.Deduper = dedupe.NewInMemory(dedupe.DefaultWindow)
	if cfg.RedisURL != "" {
		rc, err := platformredis.New(cfg.Redis())
		if err != nil {
			return err
		}
		defer rc.Close()
		deduper = dedupe.NewRedis(rc.Client, dedupe.DefaultWindow)
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Probe: rc.Health})
	}

	// Applicant-facing event publisher.
	var publisher notify.Publisher = notify.NewInMemory()
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := notify.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.NotifyTopic, log)
		if err != nil {
			return err
		}
		defer kp.Close()
		publisher = kp
	} else {
		log.Warn("no kafka brokers configured, events stay in-process")
	}

	// Identity verification provider.
	var prov provider.Provider = provider.NewSandbox()
	if cfg.Persona.BaseURL != "" {
		prov = provider.NewHTTP(cfg.Persona.BaseURL, cfg.Persona.APIKey, cfg.Persona.TemplateID,
			provider.WithHTTPClient(&http.Client{Timeout: cfg.Persona.Timeout}),
			provider.WithProviderLogger(log),
		)
	} else {
		log.Warn("no verification provider configured, using sandbox")
	}

	recorder := audit.NewRecorder(auditStore, log)

	workflow := onboardingservice.New(apps, steps, notes, recorder, runner,
		onboardingservice.WithLogger(log),
		onboardingservice.WithMetrics(onboardingmetrics.New()),
		onboardingservice.WithPublisher(publisher),
		onboardingservice.WithGranter(capability.Noop{Logger: log}),
		onboardingservice.WithPolicy(onboardingservice.Policy{
			RequireVerifiedPersona: cfg.RequireVerifiedPersona,
		}),
	)

	persona := personaservice.New(verifs, apps, prov, recorder, runner,
		personaservice.WithLogger(log),
		personaservice.WithMetrics(personametrics.New()),
		personaservice.WithPublisher(publisher),
		personaservice.WithDeduper(deduper),
	)

	router := httpapi.New(log, httpapi.Config{
		RequestTimeout: 30 * time.Second,
		Checks:         checks,
	},
		onboardinghandler.New(workflow, log, cfg.AdminJWTSecret),
		personahandler.New(persona, log, cfg.AdminJWTSecret, cfg.WebhookSecret),
	)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting bazaar onboarding server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
