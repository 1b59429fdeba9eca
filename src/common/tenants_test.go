package common

import (
	"context"
	"testing"
	"time"

	"menusync/src/db/dbtest"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newOnboarding(t *testing.T) *Onboarding {
	gdb := dbtest.New(t)
	return &Onboarding{
		DB:    gdb,
		Repos: repository.New(gdb, true),
		Now:   func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestCreateTenantDerivesSubdomain(t *testing.T) {
	o := newOnboarding(t)
	tenant, admin, err := o.CreateTenant(context.Background(), types.CreateTenantRequestBody{
		Name:       "Al Fanar Restaurant & Café",
		AdminEmail: "Owner@AlFanar.ae",
		Password:   "s3cret-pass",
		TrialDays:  14,
	})
	require.NoError(t, err)
	assert.Equal(t, "al-fanar-restaurant-and-cafe", tenant.Subdomain)
	assert.Equal(t, types.TENANT_ACTIVE, tenant.Status)
	require.NotNil(t, tenant.TrialEndsAt)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *tenant.TrialEndsAt)

	assert.Equal(t, "owner@alfanar.ae", admin.Email)
	assert.Equal(t, types.ROLE_TENANT_ADMIN, admin.Role)
	require.NotNil(t, admin.TenantID)
	assert.Equal(t, tenant.ID, *admin.TenantID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateTenantRejectsTakenSubdomain(t *testing.T) {
	o := newOnboarding(t)
	ctx := context.Background()
	_, _, err := o.CreateTenant(ctx, types.CreateTenantRequestBody{Name: "Acme", AdminEmail: "a@acme.test", Password: "password1"})
	require.NoError(t, err)

	_, _, err = o.CreateTenant(ctx, types.CreateTenantRequestBody{Name: "ACME", AdminEmail: "b@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, ErrSubdomainTaken)

	_, _, err = o.CreateTenant(ctx, types.CreateTenantRequestBody{Name: "Other", AdminEmail: "a@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = o.CreateTenant(ctx, types.CreateTenantRequestBody{Name: "x", Subdomain: "admin", AdminEmail: "c@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, ErrSubdomainTaken)

	_, _, err = o.CreateTenant(ctx, types.CreateTenantRequestBody{Name: "!!!", AdminEmail: "d@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidSubdomain)
}
