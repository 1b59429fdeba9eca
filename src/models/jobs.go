package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobTask is a row in the durable work queue.
type JobTask struct {
	ID          uuid.UUID         `gorm:"primarykey;type:uuid" json:"id"`
	TenantID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Kind        string            `gorm:"not null;index:idx_job_tasks_claim,priority:1" json:"kind"`
	Reference   string            `gorm:"index" json:"reference,omitempty"`
	Payload     datatypes.JSONMap `json:"payload"`
	Status      types.TaskStatus  `gorm:"type:text;not null;default:'pending';index:idx_job_tasks_claim,priority:2" json:"status"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int               `gorm:"not null" json:"max_attempts"`
	RunAt       time.Time         `gorm:"not null;index:idx_job_tasks_claim,priority:3" json:"run_at"`
	LeaseToken  string            `json:"-"`
	LeasedUntil *time.Time        `json:"leased_until,omitempty"`
	LastError   string            `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *JobTask) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = types.TASK_PENDING
	}
	return nil
}
