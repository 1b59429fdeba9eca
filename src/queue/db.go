package queue

import (
	"context"
	"errors"
	"time"

	"menusync/src/models"
	"menusync/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const claimRetries = 3

// DBQueue keeps tasks in the job_tasks table. A claim is a conditional UPDATE
// that installs a fresh lease token, so competing workers never share a task.
type DBQueue struct {
	DB          *gorm.DB
	Backoff     Backoff
	MaxAttempts int
	Now         func() time.Time
}

func NewDBQueue(db *gorm.DB, maxAttempts int, backoff Backoff) *DBQueue {
	return &DBQueue{DB: db, Backoff: backoff, MaxAttempts: maxAttempts, Now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a queue that enqueues inside tx.
func (q *DBQueue) WithTx(tx *gorm.DB) *DBQueue {
	c := *q
	c.DB = tx
	return &c
}

func (q *DBQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.MaxAttempts
	}
	row := &models.JobTask{
		TenantID:    task.TenantID,
		Kind:        task.Kind,
		Reference:   task.Reference,
		Payload:     task.Payload,
		Status:      types.TASK_PENDING,
		MaxAttempts: maxAttempts,
		RunAt:       q.Now(),
	}
	if err := q.DB.WithContext(ctx).Create(row).Error; err != nil {
		return "", err
	}
	return row.ID.String(), nil
}

func (q *DBQueue) Dequeue(ctx context.Context, lease time.Duration) (*Lease, error) {
	db := q.DB.WithContext(ctx)
	for i := 0; i < claimRetries; i++ {
		now := q.Now()
		var candidate models.JobTask
		err := db.
			Where("(status = ? AND run_at <= ?) OR (status = ? AND leased_until < ?)", types.TASK_PENDING, now, types.TASK_LEASED, now).
			Order("run_at asc").
			Limit(1).
			Find(&candidate).
			Error
		if err != nil {
			return nil, err
		}
		if candidate.ID == uuid.Nil {
			return nil, ErrEmpty
		}

		token := uuid.NewString()
		until := now.Add(lease)
		res := db.Model(&models.JobTask{}).
			Where("id = ?", candidate.ID).
			Where("(status = ? AND run_at <= ?) OR (status = ? AND leased_until < ?)", types.TASK_PENDING, now, types.TASK_LEASED, now).
			Updates(map[string]any{
				"status":       types.TASK_LEASED,
				"lease_token":  token,
				"leased_until": until,
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// another worker won the row
			continue
		}
		return &Lease{
			Task: Task{
				ID:          candidate.ID.String(),
				TenantID:    candidate.TenantID,
				Kind:        candidate.Kind,
				Reference:   candidate.Reference,
				Payload:     candidate.Payload,
				MaxAttempts: candidate.MaxAttempts,
			},
			Attempt: candidate.Attempts + 1,
			Token:   token,
			Until:   until,
		}, nil
	}
	return nil, ErrEmpty
}

func (q *DBQueue) Ack(ctx context.Context, l *Lease) error {
	res := q.DB.WithContext(ctx).
		Model(&models.JobTask{}).
		Where("id = ? AND lease_token = ?", l.Task.ID, l.Token).
		Updates(map[string]any{"status": types.TASK_DONE, "lease_token": "", "leased_until": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Fail schedules a retry with backoff, or buries the task once it has used up
// its attempts.
func (q *DBQueue) Fail(ctx context.Context, l *Lease, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	updates := map[string]any{"lease_token": "", "leased_until": nil, "last_error": msg}
	if l.Attempt >= l.Task.MaxAttempts {
		updates["status"] = types.TASK_DEAD
	} else {
		updates["status"] = types.TASK_PENDING
		updates["run_at"] = q.Now().Add(q.Backoff.Delay(l.Attempt))
	}
	res := q.DB.WithContext(ctx).
		Model(&models.JobTask{}).
		Where("id = ? AND lease_token = ?", l.Task.ID, l.Token).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// RecoverExpired releases leases whose worker went away. Tasks out of
// attempts are buried.
func (q *DBQueue) RecoverExpired(ctx context.Context) (int64, error) {
	now := q.Now()
	db := q.DB.WithContext(ctx)
	dead := db.Model(&models.JobTask{}).
		Where("status = ? AND leased_until < ? AND attempts >= max_attempts", types.TASK_LEASED, now).
		Updates(map[string]any{"status": types.TASK_DEAD, "lease_token": "", "leased_until": nil, "last_error": "lease expired"})
	if dead.Error != nil {
		return 0, dead.Error
	}
	res := db.Model(&models.JobTask{}).
		Where("status = ? AND leased_until < ?", types.TASK_LEASED, now).
		Updates(map[string]any{"status": types.TASK_PENDING, "lease_token": "", "leased_until": nil, "run_at": now})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected + dead.RowsAffected, nil
}

func (q *DBQueue) CountByStatus(ctx context.Context, status types.TaskStatus) (int64, error) {
	var n int64
	err := q.DB.WithContext(ctx).Model(&models.JobTask{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (q *DBQueue) CountDead(ctx context.Context) (int64, error) {
	return q.CountByStatus(ctx, types.TASK_DEAD)
}

// HasOpen reports whether a pending or leased task exists for the reference.
func (q *DBQueue) HasOpen(ctx context.Context, kind, reference string) (bool, error) {
	var n int64
	err := q.DB.WithContext(ctx).
		Model(&models.JobTask{}).
		Where("kind = ? AND reference = ? AND status IN ?", kind, reference, []types.TaskStatus{types.TASK_PENDING, types.TASK_LEASED}).
		Count(&n).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return n > 0, nil
}

// Expedite makes the pending task for the reference due now and returns its
// id, or "" when no task is pending.
func (q *DBQueue) Expedite(ctx context.Context, kind, reference string) (string, error) {
	db := q.DB.WithContext(ctx)
	var task models.JobTask
	err := db.
		Where("kind = ? AND reference = ? AND status = ?", kind, reference, types.TASK_PENDING).
		Order("run_at asc").
		Limit(1).
		Find(&task).
		Error
	if err != nil {
		return "", err
	}
	if task.ID == uuid.Nil {
		return "", nil
	}
	res := db.Model(&models.JobTask{}).
		Where("id = ? AND status = ?", task.ID, types.TASK_PENDING).
		Update("run_at", q.Now())
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// leased between the read and the update
		return "", nil
	}
	return task.ID.String(), nil
}
