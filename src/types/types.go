package types

import (
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type TenantStatus string

const (
	TENANT_ACTIVE    TenantStatus = "active"
	TENANT_SUSPENDED TenantStatus = "suspended"
	TENANT_CANCELLED TenantStatus = "cancelled"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TENANT_ACTIVE, TENANT_SUSPENDED, TENANT_CANCELLED:
		return true
	}
	return false
}

type Role string

const (
	ROLE_SUPER_ADMIN  Role = "super_admin"
	ROLE_TENANT_ADMIN Role = "tenant_admin"
	ROLE_TENANT_STAFF Role = "tenant_staff"
)

type Platform string

const (
	PLATFORM_CAREEM  Platform = "careem"
	PLATFORM_TALABAT Platform = "talabat"
)

func (p Platform) Valid() bool {
	return p == PLATFORM_CAREEM || p == PLATFORM_TALABAT
}

// Service names an external system a tenant stores credentials for.
type Service string

const (
	SERVICE_LOYVERSE Service = "loyverse"
	SERVICE_CAREEM   Service = "careem"
	SERVICE_TALABAT  Service = "talabat"
)

func (s Service) Valid() bool {
	switch s {
	case SERVICE_LOYVERSE, SERVICE_CAREEM, SERVICE_TALABAT:
		return true
	}
	return false
}

type CredentialType string

const (
	CREDENTIAL_ACCESS_TOKEN   CredentialType = "access_token"
	CREDENTIAL_API_KEY        CredentialType = "api_key"
	CREDENTIAL_WEBHOOK_SECRET CredentialType = "webhook_secret"
	CREDENTIAL_OAUTH_CLIENT   CredentialType = "oauth_client"
)

func (c CredentialType) Valid() bool {
	switch c {
	case CREDENTIAL_ACCESS_TOKEN, CREDENTIAL_API_KEY, CREDENTIAL_WEBHOOK_SECRET, CREDENTIAL_OAUTH_CLIENT:
		return true
	}
	return false
}

// OrderStatus tracks the POS synchronization of an order. Acceptance of the
// webhook itself is recorded on WebhookLog, never here.
type OrderStatus string

const (
	ORDER_PENDING OrderStatus = "pending"
	ORDER_SYNCED  OrderStatus = "synced"
	ORDER_FAILED  OrderStatus = "failed"
)

type PosSyncStatus string

const (
	POS_SYNC_FAILED PosSyncStatus = "failed"
	POS_SYNC_SYNCED PosSyncStatus = "synced"
)

type LogStatus string

const (
	LOG_SUCCESS   LogStatus = "success"
	LOG_FAILED    LogStatus = "failed"
	LOG_DUPLICATE LogStatus = "duplicate"
	LOG_PENDING   LogStatus = "pending"
)

type TaskStatus string

const (
	TASK_PENDING TaskStatus = "pending"
	TASK_LEASED  TaskStatus = "leased"
	TASK_DONE    TaskStatus = "done"
	TASK_DEAD    TaskStatus = "dead"
)

type SubscriptionStatus string

const (
	SUBSCRIPTION_ACTIVE    SubscriptionStatus = "active"
	SUBSCRIPTION_PAST_DUE  SubscriptionStatus = "past_due"
	SUBSCRIPTION_CANCELLED SubscriptionStatus = "cancelled"
)

const (
	TaskKindPOSPush = "pos.push"
)

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateTenantRequestBody struct {
	Name         string  `json:"name" binding:"required"`
	Subdomain    string  `json:"subdomain,omitempty" binding:"omitempty,subdomain"`
	CustomDomain *string `json:"custom_domain,omitempty" binding:"omitempty,fqdn"`
	TrialDays    int     `json:"trial_days,omitempty" binding:"omitempty,min=0,max=90"`
	AdminEmail   string  `json:"admin_email" binding:"required,email"`
	AdminName    string  `json:"admin_name,omitempty"`
	Password     string  `json:"password" binding:"required,min=8"`
}

type UpdateTenantStatusRequestBody struct {
	Status TenantStatus `json:"status" binding:"required,oneof=active suspended cancelled"`
}

type StoreCredentialRequestBody struct {
	Service        Service        `json:"service" binding:"required,oneof=loyverse careem talabat"`
	CredentialType CredentialType `json:"credential_type" binding:"required,oneof=access_token api_key webhook_secret oauth_client"`
	Value          string         `json:"value" binding:"required"`
	Secret         string         `json:"secret,omitempty"`
}

type PushOrderStatusRequestBody struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected preparing ready picked_up delivered cancelled"`
}

type PlatformURIParams struct {
	Platform Platform `uri:"platform" binding:"required,oneof=careem talabat"`
}

type ListQuery struct {
	Status string `form:"status,omitempty"`
	Limit  int    `form:"limit,omitempty" binding:"omitempty,min=1,max=200"`
	Offset int    `form:"offset,omitempty" binding:"omitempty,min=0"`
}

type APIResponseCredential struct {
	ID             string         `json:"id"`
	Service        Service        `json:"service"`
	CredentialType CredentialType `json:"credential_type"`
	MaskedValue    string         `json:"value"`
	HasSecret      bool           `json:"has_secret"`
	Active         bool           `json:"active"`
	RotatedAt      *time.Time     `json:"rotated_at,omitempty"`
}
