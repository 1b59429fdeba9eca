package tenancy

import (
	"context"
	"sync"
	"testing"
	"time"

	"menusync/src/db/dbtest"
	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type recordingToucher struct {
	mu      sync.Mutex
	touched []string
}

func (r *recordingToucher) Touch(t *models.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, t.Subdomain)
}

type ResolverTestSuite struct {
	suite.Suite
	repos    *repository.Repositories
	resolver *Resolver
	toucher  *recordingToucher
	acme     *models.Tenant
}

func (s *ResolverTestSuite) SetupTest() {
	gdb := dbtest.New(s.T())
	s.repos = repository.New(gdb, true)
	s.toucher = &recordingToucher{}
	s.resolver = NewResolver(s.repos.Tenants, "App.Example.com", s.toucher, nil)
	s.acme = dbtest.SeedTenant(s.T(), gdb, "acme")

	domain := "orders.acme-foods.com"
	custom := &models.Tenant{Name: "Custom", Subdomain: "custom", CustomDomain: &domain}
	s.Require().NoError(s.repos.Tenants.Create(context.Background(), custom))
	suspended := &models.Tenant{Name: "Gone", Subdomain: "gone", Status: types.TENANT_SUSPENDED}
	s.Require().NoError(s.repos.Tenants.Create(context.Background(), suspended))
}

func (s *ResolverTestSuite) TestResolveHost() {
	ctx := context.Background()
	cases := []struct {
		host      string
		subdomain string
		err       error
	}{
		{host: "acme.app.example.com", subdomain: "acme"},
		{host: "ACME.app.example.com:8443", subdomain: "acme"},
		{host: "acme.eu.app.example.com", subdomain: "acme"},
		{host: "orders.acme-foods.com", subdomain: "custom"},
		{host: "doesnotexist.app.example.com", err: ErrTenantNotFound},
		{host: "unknown.example.org", err: ErrTenantNotFound},
		{host: "gone.app.example.com", err: ErrTenantSuspended},
		{host: "app.example.com", err: ErrAmbiguousHost},
		{host: "", err: ErrAmbiguousHost},
	}
	for _, tc := range cases {
		tenant, err := s.resolver.ResolveHost(ctx, tc.host)
		if tc.err != nil {
			s.ErrorIs(err, tc.err, tc.host)
			s.Nil(tenant, tc.host)
			continue
		}
		s.Require().NoError(err, tc.host)
		s.Equal(tc.subdomain, tenant.Subdomain, tc.host)
	}
	s.Equal([]string{"acme", "acme", "acme", "custom"}, s.toucher.touched)
}

func (s *ResolverTestSuite) TestResolveIdentifier() {
	ctx := context.Background()

	byID, err := s.resolver.ResolveIdentifier(ctx, s.acme.ID.String())
	s.Require().NoError(err)
	s.Equal(s.acme.ID, byID.ID)

	bySub, err := s.resolver.ResolveIdentifier(ctx, "acme")
	s.Require().NoError(err)
	s.Equal(s.acme.ID, bySub.ID)

	_, err = s.resolver.ResolveIdentifier(ctx, "nobody")
	s.ErrorIs(err, ErrTenantNotFound)
	_, err = s.resolver.ResolveIdentifier(ctx, "gone")
	s.ErrorIs(err, ErrTenantSuspended)
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func TestContextIsRequestScoped(t *testing.T) {
	a := &models.Tenant{Subdomain: "a"}
	b := &models.Tenant{Subdomain: "b"}

	base := context.Background()
	_, ok := FromContext(base)
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(base) })

	ctxA := WithTenant(base, a)
	err := RunAs(ctxA, b, func(ctx context.Context) error {
		assert.Equal(t, "b", MustFromContext(ctx).Subdomain)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", MustFromContext(ctxA).Subdomain)
}

func TestConcurrentRequestsDoNotShareTenant(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := &models.Tenant{Name: string(rune('a' + i%26))}
			ctx := WithTenant(context.Background(), want)
			got := MustFromContext(ctx)
			assert.Same(t, want, got)
		}(i)
	}
	wg.Wait()
}

type lastSeenRecorder struct {
	seen chan uuid.UUID
}

func (l *lastSeenRecorder) TouchLastSeen(_ context.Context, id uuid.UUID, _ time.Time) error {
	l.seen <- id
	return nil
}

func TestLastSeenToucherThrottlesThroughRedis(t *testing.T) {
	client, mock := redismock.NewClientMock()
	writer := &lastSeenRecorder{seen: make(chan uuid.UUID, 2)}
	toucher := NewLastSeenToucher(writer, client, zap.NewNop())
	tenant := &models.Tenant{ID: uuid.New()}
	key := "tenant:last_seen:" + tenant.ID.String()

	mock.ExpectSetNX(key, 1, toucher.Interval).SetVal(true)
	toucher.Touch(tenant)
	select {
	case id := <-writer.seen:
		assert.Equal(t, tenant.ID, id)
	case <-time.After(time.Second):
		t.Fatal("last seen was not written")
	}

	mock.ExpectSetNX(key, 1, toucher.Interval).SetVal(false)
	toucher.Touch(tenant)
	assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(writer.seen) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLastSeenToucherWithoutRedisAlwaysWrites(t *testing.T) {
	writer := &lastSeenRecorder{seen: make(chan uuid.UUID, 2)}
	toucher := NewLastSeenToucher(writer, nil, zap.NewNop())
	tenant := &models.Tenant{ID: uuid.New()}

	toucher.Touch(tenant)
	toucher.Touch(tenant)
	for i := 0; i < 2; i++ {
		select {
		case <-writer.seen:
		case <-time.After(time.Second):
			t.Fatal("last seen was not written")
		}
	}
}
