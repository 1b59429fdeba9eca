package controllers

import (
	"errors"
	"net/http"

	"menusync/src/common"
	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreatedTenant struct {
	Tenant *models.Tenant `json:"tenant"`
	Admin  *models.User   `json:"admin"`
}

// Tenants is the super-admin tenant directory. It never goes through host
// resolution.
type Tenants struct {
	Repos      *repository.Repositories
	Onboarding *common.Onboarding
}

func (t *Tenants) Create(ctx *gin.Context) (*CreatedTenant, int, error) {
	var body types.CreateTenantRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenant, admin, err := t.Onboarding.CreateTenant(ctx.Request.Context(), body)
	switch {
	case errors.Is(err, common.ErrSubdomainTaken), errors.Is(err, common.ErrEmailTaken):
		return nil, http.StatusConflict, err
	case errors.Is(err, common.ErrInvalidSubdomain):
		return nil, http.StatusUnprocessableEntity, err
	case err != nil:
		return nil, http.StatusInternalServerError, err
	}
	return &CreatedTenant{Tenant: tenant, Admin: admin}, http.StatusCreated, nil
}

func (t *Tenants) List(ctx *gin.Context) ([]models.Tenant, int, error) {
	var q types.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenants, err := t.Repos.Tenants.List(ctx.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return tenants, http.StatusOK, nil
}

// UpdateStatus suspends, reactivates or cancels a tenant. A non-active tenant
// stops resolving immediately.
func (t *Tenants) UpdateStatus(ctx *gin.Context) (*models.Tenant, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.UpdateTenantStatusRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	id := uuid.MustParse(params.ID)
	if err := t.Repos.Tenants.UpdateStatus(reqCtx, id, body.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, http.StatusNotFound, err
		}
		return nil, http.StatusInternalServerError, err
	}
	tenant, err := t.Repos.Tenants.FindByID(reqCtx, id)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(reqCtx).Info("tenant status changed",
		zap.String("tenant_id", id.String()),
		zap.String("status", string(body.Status)),
	)
	return tenant, http.StatusOK, nil
}
