package boot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menusync/src/billing"
	"menusync/src/common"
	"menusync/src/config"
	"menusync/src/controllers"
	"menusync/src/db"
	"menusync/src/lib"
	"menusync/src/lib/pos"
	"menusync/src/models"
	"menusync/src/queue"
	"menusync/src/repository"
	"menusync/src/tenancy"
	"menusync/src/types"
	"menusync/src/utils"
	"menusync/src/worker"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stalePendingAfter = 10 * time.Minute

// App holds every long-lived dependency of the process.
type App struct {
	Config     *config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	Repos      *repository.Repositories
	Redis      *redis.Client
	Vault      *common.Vault
	Queue      queue.Queue
	Events     lib.EventPublisher
	Resolver   *tenancy.Resolver
	Ingester   *common.Ingester
	Syncer     *common.Syncer
	Onboarding *common.Onboarding
	Auth       *controllers.Auth
	Catalog    *controllers.Catalog
	Pool       *worker.Pool
	Scheduler  gocron.Scheduler
}

func InitDb(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := db.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		log.Error("error migration", zap.Error(err))
		return nil, err
	}
	return gdb, nil
}

// LoadEncryptionKey reads the credential key from Secrets Manager when a
// secret id is configured, otherwise from APP_ENCRYPTION_KEY.
func LoadEncryptionKey(ctx context.Context, cfg *config.Config) ([]byte, error) {
	raw := cfg.Security.EncryptionKey
	if cfg.AWS.EncryptionKeySecretID != "" {
		awsCfg, err := lib.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.RoleArn)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		raw, err = lib.FetchSecret(ctx, lib.AWSGetSecretsManagerClient(awsCfg), cfg.AWS.EncryptionKeySecretID)
		if err != nil {
			return nil, fmt.Errorf("fetch encryption key: %w", err)
		}
	}
	return utils.ParseKey(raw)
}

// NewQueue picks the task queue named by QUEUE_DRIVER.
func NewQueue(ctx context.Context, cfg *config.Config, gdb *gorm.DB) (queue.Queue, error) {
	backoff := queue.Backoff{Base: cfg.Worker.BackoffBase, Max: cfg.Worker.BackoffMax}
	switch cfg.Worker.QueueDriver {
	case "", "db":
		return queue.NewDBQueue(gdb, cfg.Worker.MaxAttempts, backoff), nil
	case "sqs":
		awsCfg, err := lib.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.RoleArn)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return queue.NewSQSQueue(ctx, lib.AWSGetSQSClient(awsCfg), cfg.AWS.QueueName, cfg.AWS.QueueWaitTimeSeconds, cfg.Worker.MaxAttempts, backoff)
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Worker.QueueDriver)
}

// New assembles the application around an open database and task queue.
// rdb may be nil, in which case sessions are kept in memory and tenant
// last-seen writes go straight to the database.
func New(cfg *config.Config, log *zap.Logger, gdb *gorm.DB, q queue.Queue, rdb *redis.Client, events lib.EventPublisher, key []byte) (*App, error) {
	repos := repository.New(gdb, !cfg.IsProd())
	vault, err := common.NewVault(repos.Credentials, key)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = lib.NoopPublisher{}
	}

	loyverse := pos.NewLoyverseClient(cfg.Worker.LoyverseURL, cfg.Worker.POSTimeout)

	var sessions lib.SessionStore = lib.NewMemorySessionStore()
	if rdb != nil {
		sessions = lib.NewRedisSessionStore(rdb)
	}

	app := &App{
		Config: cfg,
		Log:    log,
		DB:     gdb,
		Repos:  repos,
		Redis:  rdb,
		Vault:  vault,
		Queue:  q,
		Events: events,
		Resolver: tenancy.NewResolver(repos.Tenants, cfg.Server.BaseDomain,
			tenancy.NewLastSeenToucher(repos.Tenants, rdb, log), log),
		Ingester: &common.Ingester{
			DB:          gdb,
			Repos:       repos,
			Quota:       billing.NewQuotaChecker(repos.Billing),
			Queue:       q,
			Events:      events,
			Topic:       cfg.Kafka.OrdersTopic,
			MaxAttempts: cfg.Worker.MaxAttempts,
		},
		Syncer: &common.Syncer{
			DB:          gdb,
			Repos:       repos,
			Credentials: vault,
			POS:         loyverse,
			Queue:       q,
			Timeout:     cfg.Worker.POSTimeout,
			MaxAttempts: cfg.Worker.MaxAttempts,
		},
		Onboarding: &common.Onboarding{DB: gdb, Repos: repos},
		Auth: &controllers.Auth{
			Users:    repos.Users,
			Sessions: sessions,
			Secret:   []byte(cfg.Security.JWTSecret),
			TTL:      cfg.Security.TokenTTL,
		},
	}
	app.Catalog = &controllers.Catalog{
		Vault:   vault,
		Orders:  repos.Orders,
		Timeout: cfg.Worker.POSTimeout,
		Endpoints: map[types.Platform]controllers.CatalogEndpoint{
			types.PLATFORM_CAREEM:  {BaseURL: cfg.Worker.CareemURL, TokenURL: cfg.Worker.CareemToken},
			types.PLATFORM_TALABAT: {BaseURL: cfg.Worker.TalabatURL, TokenURL: cfg.Worker.TalabatToken},
		},
		POS: loyverse,
	}
	app.Pool = &worker.Pool{
		Queue: q,
		Handlers: map[string]worker.Handler{
			types.TaskKindPOSPush: app.Syncer.HandleTask,
		},
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Lease:        cfg.Worker.Lease,
		Log:          log,
	}
	return app, nil
}

// InitScheduler registers the maintenance jobs: lease recovery for the
// database queue, the stale pending sweep and the gauge refresh.
func (a *App) InitScheduler() (gocron.Scheduler, error) {
	sched, err := lib.NewScheduler()
	if err != nil {
		return nil, err
	}
	if dbq, ok := a.Queue.(*queue.DBQueue); ok {
		if _, err := lib.AddIntervalJob(sched, "recover-expired-leases", time.Minute, func() {
			a.RecoverExpiredLeases(context.Background(), dbq)
		}); err != nil {
			return nil, err
		}
	}
	if _, err := lib.AddIntervalJob(sched, "sweep-stale-pending", 5*time.Minute, func() {
		a.SweepStalePending(context.Background())
	}); err != nil {
		return nil, err
	}
	if _, err := lib.AddIntervalJob(sched, "refresh-gauges", 30*time.Second, func() {
		a.RefreshGauges(context.Background())
	}); err != nil {
		return nil, err
	}
	a.Scheduler = sched
	return sched, nil
}

func (a *App) RecoverExpiredLeases(ctx context.Context, dbq *queue.DBQueue) {
	n, err := dbq.RecoverExpired(ctx)
	if err != nil {
		a.Log.Error("[scheduler] lease recovery failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.Log.Warn("[scheduler] recovered expired leases", zap.Int64("tasks", n))
	}
}

func (a *App) SweepStalePending(ctx context.Context) {
	n, err := a.Syncer.SweepStalePending(ctx, time.Now().UTC().Add(-stalePendingAfter), 200)
	if err != nil {
		a.Log.Error("[scheduler] stale pending sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.Log.Info("[scheduler] re-enqueued stale orders", zap.Int("orders", n))
	}
}

func (a *App) RefreshGauges(ctx context.Context) {
	failed, err := a.Repos.Orders.CountByStatusAllTenants(ctx, types.ORDER_FAILED)
	if err != nil {
		a.Log.Error("[scheduler] count failed orders", zap.Error(err))
	} else {
		lib.FailedOrdersGauge.Set(float64(failed))
	}
	dbq, ok := a.Queue.(*queue.DBQueue)
	if !ok {
		return
	}
	for _, status := range []types.TaskStatus{types.TASK_PENDING, types.TASK_LEASED, types.TASK_DEAD} {
		n, err := dbq.CountByStatus(ctx, status)
		if err != nil {
			a.Log.Error("[scheduler] count tasks", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		lib.QueueDepthGauge.WithLabelValues(string(status)).Set(float64(n))
	}
}

// Close releases the connections the app opened.
func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		errs = append(errs, a.Scheduler.Shutdown())
	}
	a.Events.Close()
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
