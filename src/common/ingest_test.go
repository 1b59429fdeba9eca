package common

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"menusync/src/billing"
	"menusync/src/db/dbtest"
	"menusync/src/models"
	"menusync/src/queue"
	"menusync/src/repository"
	"menusync/src/types"
	"menusync/src/webhooks"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const careemCreate = `{"order_id":"123","customer":{"name":"Sara","phone":"+971500000000"},"delivery":{"address":"Marina Walk","fee":"5"},"items":[{"id":"i-1","pos_id":"v-1","name":"Shawarma","quantity":2,"unit_price":"12.50"},{"id":"i-2","name":"Fries","quantity":1,"unit_price":4}],"discount":"3","currency":"AED"}`

type published struct {
	topic, key string
	payload    any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic, key, payload})
	return nil
}

func (p *recordingPublisher) Close() {}

type recordingQueue struct {
	tasks []queue.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, t queue.Task) (string, error) {
	q.tasks = append(q.tasks, t)
	return t.Reference, nil
}

func (q *recordingQueue) Dequeue(context.Context, time.Duration) (*queue.Lease, error) {
	return nil, queue.ErrEmpty
}

func (q *recordingQueue) Ack(context.Context, *queue.Lease) error { return nil }

func (q *recordingQueue) Fail(context.Context, *queue.Lease, error) error { return nil }

type quotaFunc func(ctx context.Context, t *models.Tenant) error

func (f quotaFunc) Check(ctx context.Context, t *models.Tenant) error { return f(ctx, t) }

func (quotaFunc) Admit(context.Context, *gorm.DB, *models.Tenant) error { return nil }

// staleQuota passes the early check and leaves the decision to Admit, as a
// delivery racing another one for the last order of the month would.
type staleQuota struct {
	*billing.QuotaChecker
}

func (staleQuota) Check(context.Context, *models.Tenant) error { return nil }

type IngestTestSuite struct {
	suite.Suite
	db       *gorm.DB
	repos    *repository.Repositories
	queue    *queue.DBQueue
	events   *recordingPublisher
	ingester *Ingester
	tenant   *models.Tenant
	ctx      context.Context
}

func (s *IngestTestSuite) SetupTest() {
	s.db = dbtest.New(s.T())
	s.repos = repository.New(s.db, true)
	s.queue = queue.NewDBQueue(s.db, 5, queue.Backoff{Base: time.Second, Max: time.Minute})
	s.events = &recordingPublisher{}
	s.ingester = &Ingester{
		DB:          s.db,
		Repos:       s.repos,
		Queue:       s.queue,
		Events:      s.events,
		Topic:       "orders.ingested",
		MaxAttempts: 5,
	}
	s.tenant = dbtest.SeedTenant(s.T(), s.db, "acme")
	s.ctx = context.Background()
}

func (s *IngestTestSuite) ingest(platform webhooks.Platform, body string) (*IngestResult, int) {
	res, status, err := s.ingester.Ingest(s.ctx, s.tenant, platform, []byte(body), "req-1")
	s.Require().NoError(err)
	return res, status
}

func (s *IngestTestSuite) logs() []models.WebhookLog {
	var logs []models.WebhookLog
	s.Require().NoError(s.db.Order("created_at asc, rowid asc").Find(&logs).Error)
	return logs
}

func (s *IngestTestSuite) countOrders() int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (s *IngestTestSuite) TestCreateWritesOrderAndQueuesPush() {
	res, status := s.ingest(webhooks.Careem(), careemCreate)
	s.Equal(http.StatusOK, status)
	s.Equal("accepted", res.Status)
	s.Require().NotNil(res.OrderID)

	order, err := s.repos.Orders.Find(s.ctx, s.tenant.ID, *res.OrderID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_PENDING, order.Status)
	s.Equal("new", order.PlatformStatus)
	s.Equal("31", order.Total.String())
	s.Len(order.Items, 2)
	s.Require().NotNil(order.PosOrder)
	s.Equal(types.POS_SYNC_FAILED, order.PosOrder.SyncStatus)

	logs := s.logs()
	s.Require().Len(logs, 1)
	s.Equal(types.LOG_SUCCESS, logs[0].Status)
	s.Equal("req-1", logs[0].RequestID)

	used, err := s.repos.Billing.Usage(s.ctx, s.tenant.ID, models.UsagePeriod(time.Now()))
	s.Require().NoError(err)
	s.Equal(1, used)

	open, err := s.queue.HasOpen(s.ctx, types.TaskKindPOSPush, order.ID.String())
	s.Require().NoError(err)
	s.True(open)

	s.Require().Len(s.events.events, 1)
	s.Equal("orders.ingested", s.events.events[0].topic)
	s.Equal(s.tenant.ID.String(), s.events.events[0].key)
}

func (s *IngestTestSuite) TestDuplicateDeliveryIsIdempotent() {
	first, _ := s.ingest(webhooks.Careem(), careemCreate)
	second, status := s.ingest(webhooks.Careem(), careemCreate)

	s.Equal(http.StatusOK, status)
	s.Equal("duplicate", second.Status)
	s.Equal(*first.OrderID, *second.OrderID)
	s.Equal(int64(1), s.countOrders())

	logs := s.logs()
	s.Require().Len(logs, 2)
	s.Equal(types.LOG_SUCCESS, logs[0].Status)
	s.Equal(types.LOG_DUPLICATE, logs[1].Status)

	pending, err := s.queue.CountByStatus(s.ctx, types.TASK_PENDING)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)
}

func (s *IngestTestSuite) TestSameExternalIDAcrossTenants() {
	other := dbtest.SeedTenant(s.T(), s.db, "globex")
	s.ingest(webhooks.Careem(), careemCreate)
	res, status, err := s.ingester.Ingest(s.ctx, other, webhooks.Careem(), []byte(careemCreate), "req-2")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal("accepted", res.Status)
	s.Equal(int64(2), s.countOrders())
}

func (s *IngestTestSuite) TestMalformedBodyIsLoggedWithoutOrder() {
	body := `{"order_id":"77","items":[`
	res, status := s.ingest(webhooks.Careem(), body)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("rejected", res.Status)
	s.Equal(int64(0), s.countOrders())

	logs := s.logs()
	s.Require().Len(logs, 1)
	s.Equal(types.LOG_FAILED, logs[0].Status)
	s.Equal("77", logs[0].ExternalOrderID)
	s.Equal(body, logs[0].RawPayload)
	s.Nil(logs[0].OrderID)
}

func (s *IngestTestSuite) TestInvalidBodyIs400() {
	res, status := s.ingest(webhooks.Careem(), `{"order_id":"1","items":[]}`)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("rejected", res.Status)
	s.Equal(int64(0), s.countOrders())
	s.Equal(http.StatusBadRequest, s.logs()[0].HTTPStatus)
}

func (s *IngestTestSuite) TestUpdateForUnknownOrder() {
	res, status := s.ingest(webhooks.Careem(), `{"order_id":"999","event":"order.updated","status":"accepted"}`)
	s.Equal(http.StatusNotFound, status)
	s.Equal("rejected", res.Status)
	s.Equal(types.LOG_FAILED, s.logs()[0].Status)
}

func (s *IngestTestSuite) TestUpdateAppliesStatusOnce() {
	created, _ := s.ingest(webhooks.Careem(), careemCreate)
	update := `{"order_id":"123","event":"order.updated","status":"accepted"}`

	res, status := s.ingest(webhooks.Careem(), update)
	s.Equal(http.StatusOK, status)
	s.Equal("accepted", res.Status)

	res, status = s.ingest(webhooks.Careem(), update)
	s.Equal(http.StatusOK, status)
	s.Equal("duplicate", res.Status)

	order, err := s.repos.Orders.Find(s.ctx, s.tenant.ID, *created.OrderID)
	s.Require().NoError(err)
	s.Equal("accepted", order.PlatformStatus)
	s.Equal(types.ORDER_PENDING, order.Status)

	res, _ = s.ingest(webhooks.Careem(), `{"order_id":"123","event":"order.cancelled"}`)
	s.Equal("accepted", res.Status)
	s.Len(s.events.events, 3)
}

func (s *IngestTestSuite) TestQuotaDenied() {
	s.ingester.Quota = quotaFunc(func(context.Context, *models.Tenant) error { return billing.ErrQuotaExceeded })
	res, status := s.ingest(webhooks.Careem(), careemCreate)
	s.Equal(http.StatusTooManyRequests, status)
	s.Equal("rejected", res.Status)
	s.Equal(int64(0), s.countOrders())
	s.Equal(types.LOG_FAILED, s.logs()[0].Status)
}

func (s *IngestTestSuite) TestQuotaRecheckedInsideTransaction() {
	plan := &models.SubscriptionPlan{Name: "starter", MonthlyOrderLimit: 1}
	s.Require().NoError(s.repos.Billing.CreatePlan(s.ctx, plan))
	s.Require().NoError(s.repos.Billing.Subscribe(s.ctx, s.tenant.ID, &models.Subscription{PlanID: plan.ID}))
	period := models.UsagePeriod(time.Now())
	// a concurrent delivery already took the last order of the month
	s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.tenant.ID, period))

	s.ingester.Quota = staleQuota{billing.NewQuotaChecker(s.repos.Billing)}
	res, status := s.ingest(webhooks.Careem(), careemCreate)
	s.Equal(http.StatusTooManyRequests, status)
	s.Equal("rejected", res.Status)
	s.Nil(res.OrderID)
	s.Equal(int64(0), s.countOrders())

	used, err := s.repos.Billing.Usage(s.ctx, s.tenant.ID, period)
	s.Require().NoError(err)
	s.Equal(1, used)

	logs := s.logs()
	s.Require().Len(logs, 1)
	s.Equal(types.LOG_FAILED, logs[0].Status)
	s.Equal(http.StatusTooManyRequests, logs[0].HTTPStatus)
	s.Nil(logs[0].OrderID)

	open, err := s.queue.CountByStatus(s.ctx, types.TASK_PENDING)
	s.Require().NoError(err)
	s.Zero(open)
}

func (s *IngestTestSuite) TestExternalQueueEnqueuesAfterCommit() {
	q := &recordingQueue{}
	s.ingester.Queue = q
	res, _ := s.ingest(webhooks.Talabat(), `{"code":"T-1","status":"new","products":[{"id":1,"name":"Burger","quantity":1,"unitPrice":"10"}],"currency":"AED"}`)
	s.Require().Len(q.tasks, 1)
	s.Equal(res.OrderID.String(), q.tasks[0].Reference)
	s.Equal(types.TaskKindPOSPush, q.tasks[0].Kind)
	s.Equal(s.tenant.ID, q.tasks[0].TenantID)

	order, err := s.repos.Orders.Find(s.ctx, s.tenant.ID, *res.OrderID)
	s.Require().NoError(err)
	s.NotNil(order.PosOrder.QueuedAt)
}

func TestIngestTestSuite(t *testing.T) {
	suite.Run(t, new(IngestTestSuite))
}
