package middlewares

import (
	"errors"
	"net/http"

	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/tenancy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tenantKey = "tenant"

// ResolveTenant binds the request to the tenant named by its Host header.
func ResolveTenant(resolver *tenancy.Resolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tenant, err := resolver.ResolveHost(ctx.Request.Context(), ctx.Request.Host)
		if err != nil {
			status, msg := tenantErrorStatus(err)
			if status == http.StatusInternalServerError {
				lib.LoggerFromContext(ctx.Request.Context()).Error("tenant resolution failed", zap.Error(err))
			}
			ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		SetTenant(ctx, tenant)
		ctx.Next()
	}
}

// SetTenant stores the tenant on the gin context and the request context.
func SetTenant(ctx *gin.Context, tenant *models.Tenant) {
	ctx.Set(tenantKey, tenant)
	reqCtx := tenancy.WithTenant(ctx.Request.Context(), tenant)
	reqCtx = lib.WithLogger(reqCtx, lib.LoggerFromContext(reqCtx).With(zap.String("tenant_id", tenant.ID.String())))
	ctx.Request = ctx.Request.WithContext(reqCtx)
}

// Tenant returns the tenant bound by ResolveTenant.
func Tenant(ctx *gin.Context) *models.Tenant {
	if v, ok := ctx.Get(tenantKey); ok {
		if t, ok := v.(*models.Tenant); ok {
			return t
		}
	}
	return tenancy.MustFromContext(ctx.Request.Context())
}

func tenantErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tenancy.ErrTenantNotFound):
		return http.StatusNotFound, "tenant not found"
	case errors.Is(err, tenancy.ErrTenantSuspended):
		return http.StatusForbidden, "tenant suspended"
	case errors.Is(err, tenancy.ErrAmbiguousHost):
		return http.StatusBadRequest, "tenant could not be determined from host"
	}
	return http.StatusInternalServerError, "internal error"
}
