// Package main is the entrypoint for the propchat API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/propchat/internal/ai"
	"github.com/kiranshivaraju/propchat/internal/api"
	"github.com/kiranshivaraju/propchat/internal/api/handler"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/cache"
	"github.com/kiranshivaraju/propchat/internal/catalog"
	"github.com/kiranshivaraju/propchat/internal/chat"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/notify"
	"github.com/kiranshivaraju/propchat/internal/search"
	"github.com/kiranshivaraju/propchat/internal/security"
	"github.com/kiranshivaraju/propchat/internal/store"
	"github.com/kiranshivaraju/propchat/internal/usage"
	"github.com/kiranshivaraju/propchat/internal/validation"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	shutdownTimeout = 30 * time.Second
	adminTenant     = "admin"
	adminKeyName    = "bootstrap-admin"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"store", cfg.Store.Backend,
		"tenancy", cfg.Tenancy.Mode,
		"catalog_source", cfg.Catalog.Source,
		"ai_provider", cfg.AI.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Data store and shared cache
	st, c, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	if err := bootstrapAdminKey(ctx, st, cfg.Server.AdminKey, adminKeyTenant(cfg.Tenancy)); err != nil {
		return fmt.Errorf("bootstrap admin key: %w", err)
	}

	// 3. Property catalogs, invalidated across instances via pub/sub
	src, closeSource, err := openCatalogSource(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	defer closeSource()

	catalogOpts := []catalog.Option{catalog.WithTTL(cfg.Catalog.TTL)}
	if cfg.Tenancy.Single() {
		catalogOpts = append(catalogOpts, catalog.WithSingleTenant(cfg.Tenancy.DefaultTenant))
	}
	catalogs := catalog.New(src, catalogOpts...)
	slog.Info("catalog source ready", "source", src.Name())

	changes, err := c.Subscribe(ctx, catalog.ChangeChannel)
	if err != nil {
		return fmt.Errorf("subscribe to catalog changes: %w", err)
	}
	go catalog.Watch(ctx, changes, catalogs)

	// 4. Security screen
	rules, err := security.LoadRules(cfg.Security.RulesFile)
	if err != nil {
		return fmt.Errorf("load security rules: %w", err)
	}
	screen := security.NewScreen(rules...)
	slog.Info("security screen ready", "rules", len(rules))

	// 5. Model gateway
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	gateway := ai.NewGateway(provider, cfg.AI, nil)
	slog.Info("AI provider initialized",
		"provider", provider.Name(),
		"chain", gateway.Chain(),
		"scope", cfg.AI.Scope,
	)

	// 6. Usage, email and the chat orchestrator
	tracker := usage.NewTracker(st, cfg.Usage)
	dispatcher := notify.NewDispatcher(newSender(cfg.SMTP), nil)

	orch := chat.New(chat.Dependencies{
		Store:       st,
		Catalogs:    catalogs,
		Gateway:     gateway,
		Screen:      screen,
		Sanitizer:   security.NewSanitizer(nil),
		Validator:   validation.New(nil),
		Engine:      search.NewEngine(nil),
		Coordinator: search.NewCoordinator(catalogs, st, nil),
		Usage:       tracker,
		Notifier:    dispatcher,
	}, cfg.Chat)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:           mw.NewAuth(st),
		AdminRateLimit: mw.NewRateLimit(c, cfg.RateLimit.AdminPerMinute, nil),
		ChatRateLimit:  mw.NewRateLimit(c, cfg.RateLimit.ChatPerMinute, mw.ByTenantIP),
		Tenancy:        cfg.Tenancy,

		HealthHandler:   handler.NewHealthHandler(st, c),
		ChatHandler:     handler.NewChatHandler(orch),
		FeedbackHandler: handler.NewFeedbackHandler(st, gateway),

		PutTenantHandler:      handler.NewPutTenantHandler(st),
		DeleteTenantHandler:   handler.NewDeleteTenantHandler(st),
		PutHierarchyHandler:   handler.NewPutHierarchyHandler(st),
		PutCoBrokerageHandler: handler.NewPutCoBrokerageHandler(st),
		GetUsageHandler:       handler.NewGetUsageHandler(st, tracker),
		ListAuditHandler:      handler.NewListAuditHandler(st),
		InvalidateCatalog:     handler.NewInvalidateCatalogHandler(c),

		CreateKeyHandler: handler.NewCreateKeyHandler(st),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("pending emails abandoned", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openBackend connects the configured store and its matching cache. The
// memory backend keeps everything in-process and suits a single instance.
func openBackend(ctx context.Context, cfg *config.Config) (store.Store, cache.Cache, func(), error) {
	if cfg.Store.Backend == "memory" {
		slog.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), cache.NewMemoryCache(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	cleanup := func() {
		redisCache.Close()
		pool.Close()
	}
	return store.NewPostgresStore(pool), redisCache, cleanup, nil
}

// openCatalogSource builds the listing source named by cfg.Source.
func openCatalogSource(ctx context.Context, cfg config.CatalogConfig) (catalog.Source, func(), error) {
	switch cfg.Source {
	case "objectstore":
		client, err := catalog.NewS3Client(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, fmt.Errorf("create object store client: %w", err)
		}
		return catalog.NewObjectStoreSource(client, cfg.ObjectStore.Bucket, cfg.ObjectStore.Prefix), func() {}, nil
	case "document":
		client, err := catalog.ConnectDocumentStore(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		cleanup := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				slog.Warn("document store disconnect failed", "error", err)
			}
		}
		return catalog.NewDocumentSource(coll), cleanup, nil
	default:
		return catalog.NewLocalSource(cfg.LocalDir), func() {}, nil
	}
}

func newSender(cfg config.SMTPConfig) notify.EmailSender {
	if cfg.Enabled() {
		slog.Info("smtp delivery enabled", "host", cfg.Host, "port", cfg.Port)
		return notify.NewSMTPSender(cfg)
	}
	slog.Warn("SMTP_HOST not set, emails are logged instead of sent")
	return notify.NewLogSender(nil)
}

func adminKeyTenant(t config.TenancyConfig) string {
	if t.DefaultTenant != "" {
		return models.TenantDomain(t.DefaultTenant)
	}
	return adminTenant
}

// adminKeyStore is the slice of the store the admin key bootstrap needs.
type adminKeyStore interface {
	EnsureTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

// bootstrapAdminKey registers raw as an admin-scoped key for tenantID unless
// a key with the same secret already exists. An empty raw is a no-op.
func bootstrapAdminKey(ctx context.Context, s adminKeyStore, raw, tenantID string) error {
	if raw == "" {
		return nil
	}
	if len(raw) < mw.KeyPrefixLen {
		return fmt.Errorf("admin key shorter than %d characters", mw.KeyPrefixLen)
	}
	prefix := raw[:mw.KeyPrefixLen]

	existing, err := s.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("look up key: %w", err)
	}
	for _, k := range existing {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(raw)) == nil {
			slog.Info("admin key already registered", "key_prefix", prefix)
			return nil
		}
	}

	if _, err := s.EnsureTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      adminKeyName,
		KeyHash:   string(hash),
		KeyPrefix: prefix,
		Scopes:    []string{"read", "write", "admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// A different secret already holds the bootstrap name.
			key.Name = fmt.Sprintf("%s-%s", adminKeyName, key.ID.String()[:8])
			err = s.CreateAPIKey(ctx, key)
		}
		if err != nil {
			return fmt.Errorf("create key: %w", err)
		}
	}
	slog.Info("admin key registered", "tenant", tenantID, "key_prefix", prefix)
	return nil
}
