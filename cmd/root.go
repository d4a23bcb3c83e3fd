package cmd

import (
	"context"
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	coreDB "github.com/AzielCF/az-infer/core/database"
	domainCache "github.com/AzielCF/az-infer/domains/cache"
	domainHealth "github.com/AzielCF/az-infer/domains/health"
	"github.com/AzielCF/az-infer/domains/pipeline"
	domainUsage "github.com/AzielCF/az-infer/domains/usage"
	"github.com/AzielCF/az-infer/infrastructure/cachestore"
	usageRepo "github.com/AzielCF/az-infer/infrastructure/usage"
	"github.com/AzielCF/az-infer/infrastructure/valkey"
	"github.com/AzielCF/az-infer/integrations/gemini"
	"github.com/AzielCF/az-infer/integrations/openai"
	"github.com/AzielCF/az-infer/pkg/jobpool"
	"github.com/AzielCF/az-infer/pkg/lazy"
	"github.com/AzielCF/az-infer/pkg/ratelimit"
	"github.com/AzielCF/az-infer/pkg/respcache"
	"github.com/AzielCF/az-infer/pkg/utils"
	"github.com/AzielCF/az-infer/pkg/webtext"
	"github.com/AzielCF/az-infer/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	cfg *coreconfig.Config

	appCtx    context.Context
	appCancel context.CancelFunc

	// Infraestructura
	db            *gorm.DB
	vkClient      *valkey.Client
	cacheStore    domainCache.IStore
	responseCache *respcache.Middleware
	limiter       ratelimit.Limiter
	usagePool     *jobpool.Pool
	pipelines     *lazy.Registry[pipeline.Pipeline]

	// Usecase
	inferenceUsecase pipeline.IInferenceUsecase
	cacheUsecase     domainCache.ICacheUsecase
	usageUsecase     domainUsage.IUsageUsecase
	healthUsecase    domainHealth.IHealthUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-infer",
	Short: "Inference gateway with response cache and rate limiting",
	Long: `az-infer exposes speech, vision, text, image and video pipelines over HTTP and MCP.
Pipelines are built on first use, identical requests are answered from cache
and every client is rate limited.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

// initFlags registers persistent flags and binds each one to the env key it
// overrides. Empty defaults leave the env value (or its fallback) in place.
func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/infer"`)
	flags.String("trusted-proxies", "", `trusted proxy IP ranges --trusted-proxies <string> | example: --trusted-proxies="10.0.0.0/8,172.16.0.0/12"`)

	flags.String("cache-backend", "", `response cache backend --cache-backend <memory|valkey>`)
	flags.String("cache-ttl", "", `lifetime of cached responses --cache-ttl <duration> | example: --cache-ttl=10m or --cache-ttl=1d`)
	flags.String("cache-max-entries", "", `max cached responses --cache-max-entries <number> | example: --cache-max-entries=5000`)

	flags.String("rate-limit-algorithm", "", `rate limiter --rate-limit-algorithm <fixed|token>`)
	flags.String("rate-limit-window", "", `rate limit window --rate-limit-window <duration> | example: --rate-limit-window=15m`)
	flags.String("rate-limit-max", "", `requests per client per window --rate-limit-max <number> | example: --rate-limit-max=100`)

	flags.String("db-driver", "", `usage ledger driver --db-driver <sqlite|postgres>`)
	flags.String("db-name", "", `sqlite file or postgres database --db-name <string> | example: --db-name="storages/usage.db"`)
	flags.String("valkey-address", "", `valkey server --valkey-address <host:port>`)

	flags.String("preload", "", `pipelines built at startup --preload <tasks> | example: --preload="text-generation,summarization"`)

	bindings := map[string]string{
		"APP_PORT":             "port",
		"APP_DEBUG":            "debug",
		"APP_BASE_PATH":        "base-path",
		"APP_TRUSTED_PROXIES":  "trusted-proxies",
		"CACHE_BACKEND":        "cache-backend",
		"CACHE_TTL":            "cache-ttl",
		"CACHE_MAX_ENTRIES":    "cache-max-entries",
		"RATE_LIMIT_ALGORITHM": "rate-limit-algorithm",
		"RATE_LIMIT_WINDOW":    "rate-limit-window",
		"RATE_LIMIT_MAX":       "rate-limit-max",
		"DB_DRIVER":            "db-driver",
		"DB_NAME":              "db-name",
		"VALKEY_ADDRESS":       "valkey-address",
		"PIPELINES_PRELOAD":    "preload",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			logrus.Fatalf("[CONFIG] Failed to bind flag %s: %v", name, err)
		}
	}
}

func initApp() {
	var err error
	cfg, err = coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	//preparing folder if not exist
	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}
	cfg.App.ServerID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)

	appCtx, appCancel = context.WithCancel(context.Background())

	// 1. Cache
	if cfg.Cache.Backend == domainCache.BackendValkey {
		vkClient, err = valkey.NewClient(valkey.ConfigFrom(cfg.Database))
		if err != nil {
			logrus.WithError(err).Warn("[VALKEY] Connection failed")
			vkClient = nil
		}
	}
	cacheStore = cachestore.New(appCtx, cfg.Cache.Backend, vkClient, cachestore.Options{
		DefaultTTL:    cfg.Cache.DefaultTTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: cfg.Cache.SweepInterval,
	})
	responseCache = respcache.New(cacheStore,
		respcache.WithEnabled(cfg.Cache.Enabled),
		respcache.WithTTL(cfg.Cache.DefaultTTL),
		respcache.WithMethods(cfg.Cache.CacheableMethods),
	)
	cacheUsecase = usecase.NewCacheService(cacheStore, cfg.Cache)

	// 2. Rate limit
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(appCtx, cfg.RateLimit.Algorithm, cfg.RateLimit.Max, cfg.RateLimit.Window)
		logrus.Infof("[RATE_LIMIT] %s limiter: %d requests per %s", cfg.RateLimit.Algorithm, cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	// 3. Usage ledger
	if cfg.Usage.Enabled {
		db, err = coreDB.NewDatabase(cfg)
		if err != nil {
			logrus.Fatalf("[DATABASE] %v", err)
		}
		repo := usageRepo.NewUsageGormRepository(db)
		if err := repo.Init(appCtx); err != nil {
			logrus.Fatalf("[DATABASE] failed to migrate usage table: %v", err)
		}
		usagePool = jobpool.New("usage", cfg.Usage.Workers, cfg.Usage.QueueSize)
		usagePool.Start(appCtx)
		usageUsecase = usecase.NewUsageService(repo, usagePool)
	}

	// 4. Pipelines
	fetcher := webtext.NewFetcher(webtext.DefaultTimeout, webtext.DefaultMaxChars)
	factories := gemini.Factories(cfg.AI, fetcher)
	for task, factory := range openai.Factories(cfg.AI) {
		factories[task] = factory
	}
	pipelines = lazy.NewRegistry[pipeline.Pipeline]()
	inferenceUsecase = usecase.NewInferenceService(pipelines, factories, usageUsecase, cfg.AI.RequestTimeout)

	// 5. Health
	healthUsecase = usecase.NewHealthService(cfg.App.ServerID, cfg.App.Version, map[domainHealth.Component]domainHealth.Checker{
		domainHealth.ComponentDatabase:  usecase.DatabaseChecker(db),
		domainHealth.ComponentCache:     usecase.CacheChecker(cacheStore),
		domainHealth.ComponentPipelines: usecase.PipelinesChecker(inferenceUsecase),
	})
}

// preloadPipelines builds the configured pipelines in the background so the
// server starts listening right away.
func preloadPipelines() {
	if len(cfg.Pipelines.Preload) == 0 {
		return
	}
	tasks := make([]pipeline.Task, 0, len(cfg.Pipelines.Preload))
	for _, name := range cfg.Pipelines.Preload {
		task, err := pipeline.ParseTask(name)
		if err != nil {
			logrus.Warnf("[PIPELINE] Ignoring preload entry: %v", err)
			continue
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return
	}

	go func() {
		start := time.Now()
		if err := inferenceUsecase.Preload(appCtx, tasks); err != nil {
			logrus.WithError(err).Warn("[PIPELINE] Preload finished with errors")
			return
		}
		logrus.Infof("[PIPELINE] Preloaded %d pipelines in %s", len(tasks), time.Since(start).Round(time.Millisecond))
	}()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp releases every resource opened by initApp. Pending usage records
// are flushed before the database closes.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if usagePool != nil {
		usagePool.Stop()
	}
	if limiter != nil {
		limiter.Close()
	}
	if cacheStore != nil {
		cacheStore.Close()
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if appCancel != nil {
		appCancel()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
