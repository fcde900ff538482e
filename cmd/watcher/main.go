package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"blockwatch/internal/client/platform"
	"blockwatch/internal/config"
	cronrunner "blockwatch/internal/cron"
	"blockwatch/internal/db"
	"blockwatch/internal/handler"
	"blockwatch/internal/logger"
	"blockwatch/internal/notify"
	gormrepository "blockwatch/internal/repository/gorm"
	"blockwatch/internal/service"

	_ "blockwatch/docs"
)

func main() {
	cfgPath := os.Getenv("BW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.Ping(dbConn); err != nil {
		logger.Fatal("db unreachable", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	platformHTTP := &http.Client{Timeout: cfg.Platform.Timeout}
	platformClient := platform.NewClient(platformHTTP, cfg.Platform.Host, cfg.Platform.AppToken)
	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	feed := &service.ActionFeed{Logger: logger}
	recorder := &service.ActionRecorder{
		Store:       store,
		Logger:      logger,
		Feed:        feed,
		DedupWindow: cfg.Actions.DedupWindow,
	}
	filter := &service.DeactivationService{
		Client:    platformClient,
		Store:     store,
		Logger:    logger,
		BatchSize: cfg.Diff.LookupBatchSize,
	}
	diffSvc := &service.DiffService{
		Store:    store,
		Filter:   filter,
		Recorder: recorder,
		Logger:   logger,
	}
	pruner := &service.RetentionService{
		Store:  store,
		Logger: logger,
		Keep:   cfg.Retention.Keep,
	}
	syncSvc := &service.BlockSyncService{
		Store:    store,
		Client:   platformClient,
		Logger:   logger,
		Diff:     diffSvc,
		Pruner:   pruner,
		Settings: settingsSvc,
		Backoff:  cfg.Sync.RateLimitBackoff,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.RequireTokenMiddleware())
	engine.Use(handler.WriteAuditMiddleware(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Env: cfg.App.Env}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)
	accountHandler := &handler.AccountHandler{
		Repo:   store,
		Sync:   syncSvc,
		Diff:   diffSvc,
		Pruner: pruner,
		Logger: logger,
	}
	accountHandler.Register(engine)
	snapshotHandler := &handler.SnapshotHandler{Repo: store}
	snapshotHandler.Register(engine)
	actionHandler := &handler.ActionHandler{Repo: store, Recorder: recorder}
	actionHandler.Register(engine)
	currentBlockHandler := &handler.CurrentBlockHandler{Repo: store}
	currentBlockHandler.Register(engine)
	identityHandler := &handler.IdentityHandler{Repo: store}
	identityHandler.Register(engine)
	settingsHandler := &handler.SystemSettingsHandler{Repo: store, Settings: settingsSvc}
	settingsHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Feed: feed, Logger: logger}
	streamHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		notifier := &notify.Notifier{
			URL:    url,
			Secret: cfg.Webhook.Secret,
			Logger: logger,
			Gate: func(ctx context.Context) bool {
				return settingsSvc.IsEnabled(ctx, service.FeatureWebhook, false)
			},
		}
		_, events := feed.Subscribe(64)
		go notifier.Consume(ctx, events)
		logger.Info("webhook notifier started", zap.String("url", url))
	}

	cronRunner := cronrunner.New(logger, ctx)
	staleAfter := cfg.Sync.StaleAfter
	batchLimit := cfg.Sync.BatchLimit
	_, err = cronRunner.Add("block_sync_sweep", cfg.Cron.BlockSync, func(ctx context.Context) {
		if !settingsSvc.IsEnabled(ctx, service.FeatureBlockSync, true) {
			return
		}
		stale, err := store.ListStaleAccounts(ctx, time.Now().UTC().Add(-staleAfter), batchLimit)
		if err != nil {
			logger.Warn("stale account scan failed", zap.Error(err))
			return
		}
		for i := range stale {
			_, started, err := syncSvc.StartSync(ctx, stale[i].ID)
			if err != nil {
				logger.Warn("cron sync start failed",
					zap.String("account_id", stale[i].ID),
					zap.Error(err),
				)
				continue
			}
			if started {
				logger.Info("cron sync started", zap.String("account_id", stale[i].ID))
			}
		}
	})
	if err != nil {
		logger.Warn("cron register block sync failed", zap.Error(err))
	}
	if cfg.Cron.Enabled {
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
