// Package policy holds the single table of who may do what.
package policy

import (
	"menusync/src/types"

	"github.com/google/uuid"
)

type Resource string

const (
	Orders         Resource = "orders"
	SyncQueue      Resource = "sync_queue"
	Credentials    Resource = "credentials"
	WebhookLogs    Resource = "webhook_logs"
	Catalog        Resource = "catalog"
	Tenants        Resource = "tenants"
	Impersonation  Resource = "impersonation"
	AllTenantsSync Resource = "all_tenants_sync"
)

type Action string

const (
	Read   Action = "read"
	Write  Action = "write"
	Retry  Action = "retry"
	Start  Action = "start"
	Leave  Action = "leave"
	Manage Action = "manage"
)

// Principal is the authenticated caller. Impersonator is set while a
// super-admin acts as another user.
type Principal struct {
	UserID       uuid.UUID
	Email        string
	Role         types.Role
	TenantID     uuid.UUID
	SessionID    string
	Impersonator uuid.UUID
}

func (p Principal) Impersonating() bool {
	return p.Impersonator != uuid.Nil
}

type rule struct {
	roles []types.Role
	// when set, the principal must (or must not) be impersonating
	impersonating *bool
}

var (
	yes = true
	no  = false

	staff      = []types.Role{types.ROLE_TENANT_ADMIN, types.ROLE_TENANT_STAFF}
	adminOnly  = []types.Role{types.ROLE_TENANT_ADMIN}
	superAdmin = []types.Role{types.ROLE_SUPER_ADMIN}
)

var rules = map[Resource]map[Action]rule{
	Orders: {
		Read:  {roles: staff},
		Write: {roles: staff},
	},
	SyncQueue: {
		Read:  {roles: staff},
		Retry: {roles: staff},
	},
	WebhookLogs: {
		Read: {roles: staff},
	},
	Catalog: {
		Read:  {roles: staff},
		Write: {roles: adminOnly},
	},
	Credentials: {
		Read:  {roles: adminOnly},
		Write: {roles: adminOnly},
	},
	Tenants: {
		Read:   {roles: superAdmin},
		Manage: {roles: superAdmin},
	},
	AllTenantsSync: {
		Read:  {roles: superAdmin},
		Retry: {roles: superAdmin},
	},
	Impersonation: {
		Start: {roles: superAdmin, impersonating: &no},
		Leave: {roles: append(append([]types.Role{}, staff...), types.ROLE_SUPER_ADMIN), impersonating: &yes},
	},
}

// Evaluate reports whether p may perform action on resource. Anything not in
// the table is denied.
func Evaluate(p Principal, resource Resource, action Action) bool {
	actions, ok := rules[resource]
	if !ok {
		return false
	}
	r, ok := actions[action]
	if !ok {
		return false
	}
	if r.impersonating != nil && *r.impersonating != p.Impersonating() {
		return false
	}
	for _, role := range r.roles {
		if role == p.Role {
			return true
		}
	}
	return false
}
