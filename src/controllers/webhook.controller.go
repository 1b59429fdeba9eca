package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"menusync/src/common"
	"menusync/src/lib"
	"menusync/src/middlewares"
	"menusync/src/models"
	"menusync/src/tenancy"
	"menusync/src/types"
	"menusync/src/webhooks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrPayloadTooLarge = errors.New("payload too large")

// Webhooks receives order deliveries from the platforms. The tenant comes
// from the path; a Host under the base domain that resolves must agree.
type Webhooks struct {
	Resolver    *tenancy.Resolver
	Ingester    *common.Ingester
	Credentials webhooks.CredentialSource
	MaxBytes    int64
}

func (w *Webhooks) Receive(ctx *gin.Context) (*common.IngestResult, int, error) {
	platform, ok := webhooks.Lookup(types.Platform(ctx.Param("platform")))
	if !ok {
		return nil, http.StatusNotFound, fmt.Errorf("unknown platform %q", ctx.Param("platform"))
	}
	reqCtx := ctx.Request.Context()
	log := lib.LoggerFromContext(reqCtx).With(zap.String("platform", string(platform.Name)))

	tenant, status, err := w.tenant(ctx)
	if err != nil {
		if status == http.StatusUnauthorized {
			lib.WebhookCounter.WithLabelValues(string(platform.Name), "unauthorized").Inc()
			log.Info("webhook rejected", zap.String("tenant", ctx.Param("tenant")), zap.Error(err))
		}
		return nil, status, err
	}

	body, err := w.read(ctx)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}

	if err := platform.Verifier.Verify(reqCtx, ctx.Request.Header, body, tenant.ID, w.Credentials); err != nil {
		lib.WebhookCounter.WithLabelValues(string(platform.Name), "unauthorized").Inc()
		log.Info("webhook rejected", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		return nil, http.StatusUnauthorized, webhooks.ErrUnauthorized
	}

	middlewares.SetTenant(ctx, tenant)
	return w.Ingester.Ingest(ctx.Request.Context(), tenant, platform, body, middlewares.RequestID(ctx))
}

// tenant resolves the path identifier. A Host naming a tenant subdomain is
// resolved first and an unknown one is 404 before any credential is read.
// Every other failure a caller could probe is reported as 401.
func (w *Webhooks) tenant(ctx *gin.Context) (*models.Tenant, int, error) {
	reqCtx := ctx.Request.Context()
	var byHost *models.Tenant
	if label, ok := w.Resolver.Subdomain(ctx.Request.Host); ok && label != "" && !common.IsReservedSubdomain(label) {
		t, err := w.Resolver.ResolveHost(reqCtx, ctx.Request.Host)
		switch {
		case errors.Is(err, tenancy.ErrTenantNotFound):
			return nil, http.StatusNotFound, err
		case errors.Is(err, tenancy.ErrTenantSuspended):
			return nil, http.StatusUnauthorized, webhooks.ErrUnauthorized
		case err != nil:
			return nil, http.StatusInternalServerError, err
		}
		byHost = t
	}
	tenant, err := w.Resolver.ResolveIdentifier(reqCtx, ctx.Param("tenant"))
	if err != nil {
		if errors.Is(err, tenancy.ErrTenantNotFound) || errors.Is(err, tenancy.ErrTenantSuspended) || errors.Is(err, tenancy.ErrAmbiguousHost) {
			return nil, http.StatusUnauthorized, webhooks.ErrUnauthorized
		}
		return nil, http.StatusInternalServerError, err
	}
	if byHost != nil && byHost.ID != tenant.ID {
		return nil, http.StatusUnauthorized, webhooks.ErrUnauthorized
	}
	return tenant, http.StatusOK, nil
}

func (w *Webhooks) read(ctx *gin.Context) ([]byte, error) {
	limit := w.MaxBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, err
	}
	return body, nil
}
