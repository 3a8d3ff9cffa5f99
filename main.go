package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"link-reward-system/database"
	"link-reward-system/handlers"
	"link-reward-system/middleware"
	"link-reward-system/services"
	"link-reward-system/utils"
	"link-reward-system/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
)

func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		log.Printf("⚠️  Invalid %s value %q, using default %s", key, raw, def)
	}
	return def
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
		log.Printf("⚠️  Invalid %s value %q, using default %d", key, raw, def)
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed; /healthz is the one exemption
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-Team-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	linkStore := database.NewShortLinkStore(db)
	clickStore := database.NewClickEventStore(db)
	tierStore := database.NewRewardTierStore(db)
	referralStore := database.NewReferralStore(db)
	rollupStore := database.NewRollupStore(db)

	cache := database.NewLinkCache(
		os.Getenv("REDIS_ADDR"),
		os.Getenv("REDIS_PASSWORD"),
		envDuration("LINK_CACHE_TTL", 60*time.Second),
	)

	// One scheduler carries every periodic job.
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("failed to create job scheduler:", err)
	}

	// Geo database: local file first, R2 object when configured.
	geo := services.NewGeoResolver()
	if path := os.Getenv("GEO_DB_PATH"); path != "" {
		if err := geo.LoadFile(path); err != nil {
			log.Printf("⚠️  Failed to load local geo database: %v", err)
		}
	}
	r2Ready, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if r2Ready {
		refreshCtx, cancelFetch := context.WithTimeout(context.Background(), 2*time.Minute)
		if body, err := utils.FetchGeoDatabase(refreshCtx); err != nil {
			log.Printf("⚠️  Initial geo database fetch failed: %v", err)
		} else {
			if err := geo.LoadCSV(body); err != nil {
				log.Printf("⚠️  Initial geo database load failed: %v", err)
			}
			body.Close()
		}
		cancelFetch()
		if err := services.ScheduleGeoRefresh(sched, geo, utils.FetchGeoDatabase, envDuration("GEO_REFRESH_INTERVAL", 6*time.Hour)); err != nil {
			log.Fatal("failed to schedule geo refresh:", err)
		}
	} else {
		log.Println("⚠️  R2 not configured — geo database refresh disabled")
	}
	if geo.Size() == 0 {
		log.Println("⚠️  No geo database loaded — clicks will be recorded without location")
	}

	linkService := services.NewLinkService(linkStore, cacheOrNil(cache))
	earningsService := services.NewEarningsService(tierStore, linkStore, clickStore, referralStore)
	analyticsService := services.NewAnalyticsService(clickStore, rollupStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clickWorker := workers.NewClickWorker(
		clickStore,
		geo,
		referralStore,
		envInt("CLICK_QUEUE_SIZE", 4096),
		envInt("CLICK_WORKERS", 4),
	)
	clickWorker.Start(ctx)

	if err := analyticsService.ScheduleRollupRefresh(sched, envDuration("ROLLUP_REFRESH_INTERVAL", 5*time.Minute)); err != nil {
		log.Fatal("failed to schedule rollup refresh:", err)
	}
	sched.Start()

	handlers.SetupRedirectRoutes(app, linkService, clickWorker)
	handlers.SetupLinkRoutes(app, linkService)
	handlers.SetupAnalyticsRoutes(app, analyticsService)
	handlers.SetupEarningsRoutes(app, earningsService)
	handlers.SetupHealthRoutes(app, clickWorker, geo)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Click worker running")
	log.Println("✅ Rollup scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced — all requests except /healthz must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("⚠️  Scheduler shutdown error: %v", err)
	}
	clickWorker.Wait()
}

// cacheOrNil keeps a disabled redis cache out of the resolver: a typed
// nil pointer behind the interface would defeat the nil checks there.
func cacheOrNil(cache *database.LinkCache) services.LinkCache {
	if cache == nil {
		return nil
	}
	return cache
}
