package controllers

import (
	"errors"
	"net/http"

	"menusync/src/common"
	"menusync/src/lib"
	"menusync/src/middlewares"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSecretRequired = errors.New("oauth_client credentials need a secret")

type Credentials struct {
	Vault *common.Vault
}

func (c *Credentials) List(ctx *gin.Context) ([]types.APIResponseCredential, int, error) {
	tenant := middlewares.Tenant(ctx)
	creds, err := c.Vault.List(ctx.Request.Context(), tenant.ID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return creds, http.StatusOK, nil
}

// Store creates or rotates the credential for (service, type). Only the
// masked view is ever returned.
func (c *Credentials) Store(ctx *gin.Context) (*types.APIResponseCredential, int, error) {
	var body types.StoreCredentialRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if body.CredentialType == types.CREDENTIAL_OAUTH_CLIENT && body.Secret == "" {
		return nil, http.StatusUnprocessableEntity, ErrSecretRequired
	}
	tenant := middlewares.Tenant(ctx)
	view, err := c.Vault.Store(ctx.Request.Context(), tenant.ID, body.Service, body.CredentialType, body.Value, body.Secret)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(ctx.Request.Context()).Info("credential stored",
		zap.String("service", string(body.Service)),
		zap.String("credential_type", string(body.CredentialType)),
	)
	return view, http.StatusOK, nil
}

func (c *Credentials) Deactivate(ctx *gin.Context) (int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return http.StatusBadRequest, err
	}
	tenant := middlewares.Tenant(ctx)
	err := c.Vault.Deactivate(ctx.Request.Context(), tenant.ID, uuid.MustParse(params.ID))
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound, err
	}
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusNoContent, nil
}
