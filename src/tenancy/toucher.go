package tenancy

import (
	"context"
	"time"

	"menusync/src/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type lastSeenWriter interface {
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// LastSeenToucher updates Tenant.LastSeenAt at most once per Interval per
// tenant. Work happens in a goroutine with its own timeout; errors are
// logged and dropped.
type LastSeenToucher struct {
	Tenants  lastSeenWriter
	Redis    *redis.Client
	Interval time.Duration
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewLastSeenToucher(tenants lastSeenWriter, rdb *redis.Client, log *zap.Logger) *LastSeenToucher {
	return &LastSeenToucher{
		Tenants:  tenants,
		Redis:    rdb,
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Second,
		Log:      log,
	}
}

func (l *LastSeenToucher) Touch(t *models.Tenant) {
	id := t.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
		defer cancel()
		if l.Redis != nil {
			ok, err := l.Redis.SetNX(ctx, "tenant:last_seen:"+id.String(), 1, l.Interval).Result()
			if err != nil || !ok {
				return
			}
		}
		if err := l.Tenants.TouchLastSeen(ctx, id, time.Now().UTC()); err != nil {
			l.Log.Debug("[tenancy] last seen touch failed", zap.String("tenant_id", id.String()), zap.Error(err))
		}
	}()
}
