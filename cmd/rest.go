package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AzielCF/az-infer/ui/rest"
	"github.com/AzielCF/az-infer/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the inference pipelines over http",
	Long:  `Start the REST gateway. Inference routes are rate limited per client IP and identical requests are answered from the response cache.`,
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.App.BodyLimit,
		Network:                 "tcp",
		AppName:                 "Az-Infer Gateway",
		ServerHeader:            "Hidden",
	}

	// Configure proxy settings if trusted proxies are specified
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())

	origins := strings.Join(cfg.App.CorsAllowedOrigins, ", ")
	if cfg.App.BaseUrl != "" && !strings.Contains(origins, cfg.App.BaseUrl) {
		origins += ", " + cfg.App.BaseUrl
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders: strings.Join([]string{middleware.HeaderCache, middleware.HeaderLimit, middleware.HeaderRemaining, middleware.HeaderReset, fiber.HeaderRetryAfter}, ", "),
	}))
	app.Use(middleware.Recovery())

	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000, // 1 Year
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	apiPath := cfg.App.BasePath + "/api"
	apiGroup := app.Group(apiPath)

	// Health queda fuera del límite para que los balanceadores no consuman cupo
	if limiter != nil {
		apiGroup.Use(middleware.RateLimit(limiter, apiPath+"/health"))
	}

	rest.InitRestInference(apiGroup, inferenceUsecase, cfg.AI.MaxImageBytes, cfg.AI.MaxAudioBytes, middleware.ResponseCache(responseCache))
	rest.InitRestPipelines(apiGroup, inferenceUsecase)
	rest.InitRestCache(apiGroup, cacheUsecase)
	if usageUsecase != nil {
		rest.InitRestUsage(apiGroup, usageUsecase)
	}
	apiGroup.Get("/usage/pool/stats", rest.UsagePoolStats(usagePool))
	rest.InitRestHealth(apiGroup, healthUsecase)
	rest.InitRestApp(apiGroup, cfg)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	preloadPipelines()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorln("[REST] Failed to start: ", err.Error())
	}
	StopApp()
}
