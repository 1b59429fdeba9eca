package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"menusync/src/boot"
	"menusync/src/config"
	"menusync/src/lib"
	"menusync/src/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	apiPrefix     string = "/api/v1"
	adminPrefix   string = "/api/admin"
	webhookPrefix string = "/api/webhook"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

var subdomainValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	v, ok := fl.Field().Interface().(string)
	return ok && subdomainPattern.MatchString(v)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("subdomain", subdomainValidatorFunc)
	}
}

func setupRouter(log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(log))
	router.Use(middlewares.Metrics)
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func maintenanceModeMiddleware(g *gin.Engine, enabled bool) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if enabled {
			err := errors.New("server is under maintenance")
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	})
	return g
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.Server.Env == "local" {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", middlewares.RequestIDHeader)
	cc.ExposeHeaders = append(cc.ExposeHeaders, middlewares.RequestIDHeader)
	cc.AllowOriginFunc = func(origin string) bool {
		for _, allowed := range cfg.Server.AllowedOrigins {
			if strings.EqualFold(origin, allowed) {
				return true
			}
		}
		// tenant dashboards are served from their own subdomain
		return strings.HasPrefix(origin, "https://") && strings.HasSuffix(strings.ToLower(origin), "."+cfg.Server.BaseDomain)
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// newServer mounts every route on a fresh engine.
func newServer(app *boot.App) *gin.Engine {
	registerValidators()
	router := setupRouter(app.Log)
	router.Use(corsMiddleware(app.Config))
	router = maintenanceModeMiddleware(router, app.Config.Server.MaintenanceMode)

	webhookRoutes(router, app)
	tenantRoutes(router, app)
	adminRoutes(router, app)
	return router
}

// respond writes the (result, status, err) triple returned by controllers.
// Server errors never leak their message.
func respond[T any](ctx *gin.Context, res T, status int, err error) {
	if err != nil {
		msg := err.Error()
		switch {
		case status >= http.StatusInternalServerError:
			lib.LoggerFromContext(ctx.Request.Context()).Error("request failed", zap.Error(err))
			msg = "internal error"
		case status == http.StatusUnauthorized:
			msg = "unauthorized"
		}
		_ = ctx.Error(err)
		ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	if status == http.StatusNoContent {
		ctx.Status(status)
		return
	}
	ctx.JSON(status, res)
}

func main() {
	cfg := config.Load()
	log, err := lib.InitLogger(cfg.Log.Level, cfg.Server.Env, cfg.Log.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Security.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := boot.InitDb(cfg, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	key, err := boot.LoadEncryptionKey(ctx, cfg)
	if err != nil {
		log.Fatal("encryption key", zap.Error(err))
	}
	q, err := boot.NewQueue(ctx, cfg, gdb)
	if err != nil {
		log.Fatal("task queue", zap.Error(err))
	}

	rdb := lib.GetRedisClient(cfg.Redis.URL)
	if rdb != nil {
		if err := lib.PingRedis(ctx, rdb); err != nil {
			log.Warn("[redis] unreachable, continuing without it", zap.Error(err))
			_ = rdb.Close()
			rdb = nil
		}
	}

	var events lib.EventPublisher = lib.NoopPublisher{}
	if cfg.Kafka.Broker != "" {
		kp, err := lib.NewKafkaPublisher(cfg.Kafka.Broker, "menusync-api", log)
		if err != nil {
			log.Fatal("kafka", zap.Error(err))
		}
		events = kp
		go func() {
			if _, err := lib.KafkaCreateTopics(ctx, cfg.Kafka.Broker, cfg.Kafka.OrdersTopic); err != nil {
				log.Warn("[kafka] create topics", zap.Error(err))
			}
		}()
	}

	app, err := boot.New(cfg, log, gdb, q, rdb, events, key)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}
	defer app.Close()

	sched, err := app.InitScheduler()
	if err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newServer(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Pool.Run(gctx)
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exited with error", zap.Error(err))
	}
}
