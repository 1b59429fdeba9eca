package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"menusync/src/db/dbtest"
	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/policy"
	"menusync/src/repository"
	"menusync/src/tenancy"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims types.Claims) string {
	t.Helper()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func serve(r *gin.Engine, host, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = host
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResolveTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb := dbtest.New(t)
	repos := repository.New(gdb, true)
	acme := dbtest.SeedTenant(t, gdb, "acme")
	require.NoError(t, repos.Tenants.Create(context.Background(), &models.Tenant{Name: "Gone", Subdomain: "gone", Status: types.TENANT_SUSPENDED}))

	r := gin.New()
	r.Use(ResolveTenant(tenancy.NewResolver(repos.Tenants, "menusync.test", nil, nil)))
	r.GET("/", func(ctx *gin.Context) {
		assert.Equal(t, Tenant(ctx).ID, tenancy.MustFromContext(ctx.Request.Context()).ID)
		ctx.String(http.StatusOK, Tenant(ctx).ID.String())
	})

	w := serve(r, "acme.menusync.test:8080", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, acme.ID.String(), w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(r, "nobody.menusync.test", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "gone.menusync.test", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, "menusync.test", "").Code)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := lib.NewMemorySessionStore()
	tenantID := uuid.New()

	r := gin.New()
	r.Use(AuthMiddleware(secret, nil, sessions))
	r.GET("/", func(ctx *gin.Context) {
		p, ok := GetPrincipal(ctx)
		require.True(t, ok)
		ctx.JSON(http.StatusOK, gin.H{"role": p.Role, "tenant": p.TenantID, "impersonating": p.Impersonating()})
	})

	staff := types.Claims{Email: "staff@acme.test", Role: types.ROLE_TENANT_STAFF, TenantID: tenantID.String(), SessionID: "s1"}
	staff.Subject = uuid.NewString()

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
	})
	t.Run("valid token", func(t *testing.T) {
		w := serve(r, "", sign(t, staff))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tenant_staff", gjson.Get(w.Body.String(), "role").String())
		assert.Equal(t, tenantID.String(), gjson.Get(w.Body.String(), "tenant").String())
	})
	t.Run("wrong secret", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, staff).SignedString([]byte("other"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(r, "", raw).Code)
	})
	t.Run("expired token", func(t *testing.T) {
		expired := staff
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(secret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(r, "", raw).Code)
	})
	t.Run("impersonation needs a live session", func(t *testing.T) {
		imp := staff
		imp.SessionID = "imp-1"
		imp.Impersonator = uuid.NewString()
		token := sign(t, imp)

		assert.Equal(t, http.StatusUnauthorized, serve(r, "", token).Code)

		require.NoError(t, sessions.Save(context.Background(), "imp-1", lib.PrincipalSession{UserID: imp.Impersonator, Role: "super_admin"}, time.Minute))
		w := serve(r, "", token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gjson.Get(w.Body.String(), "impersonating").Bool())

		require.NoError(t, sessions.Delete(context.Background(), "imp-1"))
		assert.Equal(t, http.StatusUnauthorized, serve(r, "", token).Code)
	})
}

func TestRequireTenantMatchAndAuthorize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenant := &models.Tenant{ID: uuid.New(), Subdomain: "acme"}

	build := func(p policy.Principal) *gin.Engine {
		r := gin.New()
		r.Use(func(ctx *gin.Context) {
			SetTenant(ctx, tenant)
			ctx.Set(principalKey, p)
		})
		r.GET("/", RequireTenantMatch, Authorize(policy.Credentials, policy.Write), func(ctx *gin.Context) {
			ctx.Status(http.StatusNoContent)
		})
		return r
	}

	admin := policy.Principal{UserID: uuid.New(), Role: types.ROLE_TENANT_ADMIN, TenantID: tenant.ID}
	assert.Equal(t, http.StatusNoContent, serve(build(admin), "", "").Code)

	staff := admin
	staff.Role = types.ROLE_TENANT_STAFF
	assert.Equal(t, http.StatusForbidden, serve(build(staff), "", "").Code)

	other := admin
	other.TenantID = uuid.New()
	assert.Equal(t, http.StatusForbidden, serve(build(other), "", "").Code)

	root := policy.Principal{UserID: uuid.New(), Role: types.ROLE_SUPER_ADMIN}
	assert.Equal(t, http.StatusForbidden, serve(build(root), "", "").Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, RequestID(ctx))
	})

	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, known)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, known, w.Body.String())
	assert.Equal(t, known, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}
