package controllers

import (
	"errors"
	"net/http"
	"time"

	"menusync/src/lib"
	"menusync/src/middlewares"
	"menusync/src/policy"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNestedImpersonation = errors.New("already impersonating")
	ErrNotImpersonating    = errors.New("not impersonating")
	ErrImpersonationTarget = errors.New("target cannot be impersonated")
)

// Impersonate stores the caller in the session side channel and issues a
// token for the target under a fresh session id.
func (a *Auth) Impersonate(ctx *gin.Context) (*TokenResponse, int, error) {
	actor, ok := middlewares.GetPrincipal(ctx)
	if !ok {
		return nil, http.StatusUnauthorized, errors.New("unauthorized")
	}
	if actor.Impersonating() {
		return nil, http.StatusConflict, ErrNestedImpersonation
	}
	if !policy.Evaluate(actor, policy.Impersonation, policy.Start) {
		return nil, http.StatusForbidden, errors.New("forbidden")
	}
	var params struct {
		UserID string `uri:"userId" binding:"required,uuid"`
	}
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	target, err := a.Users.FindByIDAllTenants(reqCtx, uuid.MustParse(params.UserID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if target.IsSuperAdmin() || target.TenantID == nil {
		return nil, http.StatusForbidden, ErrImpersonationTarget
	}

	next := principalOf(target, actor.UserID)
	err = a.Sessions.Save(reqCtx, next.SessionID, lib.PrincipalSession{
		UserID:    actor.UserID.String(),
		Email:     actor.Email,
		Role:      string(actor.Role),
		TargetID:  target.ID.String(),
		StartedAt: time.Now().UTC(),
	}, a.sessionTTL())
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	res, err := a.issue(next)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(reqCtx).Info("impersonation started",
		zap.String("actor_id", actor.UserID.String()),
		zap.String("target_id", target.ID.String()),
		zap.String("tenant_id", target.TenantID.String()),
	)
	return res, http.StatusOK, nil
}

// LeaveImpersonation restores the original principal and clears the side
// channel. The returned token carries a new session id.
func (a *Auth) LeaveImpersonation(ctx *gin.Context) (*TokenResponse, int, error) {
	current, ok := middlewares.GetPrincipal(ctx)
	if !ok {
		return nil, http.StatusUnauthorized, errors.New("unauthorized")
	}
	if !current.Impersonating() {
		return nil, http.StatusConflict, ErrNotImpersonating
	}
	if !policy.Evaluate(current, policy.Impersonation, policy.Leave) {
		return nil, http.StatusForbidden, errors.New("forbidden")
	}
	reqCtx := ctx.Request.Context()
	stored, err := a.Sessions.Load(reqCtx, current.SessionID)
	if errors.Is(err, lib.ErrSessionNotFound) {
		return nil, http.StatusUnauthorized, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if stored.UserID != current.Impersonator.String() {
		return nil, http.StatusForbidden, errors.New("session does not belong to caller")
	}
	if err := a.Sessions.Delete(reqCtx, current.SessionID); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	original, err := a.Users.FindByIDAllTenants(reqCtx, current.Impersonator)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	if original.Role != types.ROLE_SUPER_ADMIN {
		return nil, http.StatusForbidden, errors.New("original principal is no longer a super-admin")
	}
	res, err := a.issue(principalOf(original, uuid.Nil))
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(reqCtx).Info("impersonation ended",
		zap.String("actor_id", original.ID.String()),
		zap.String("target_id", current.UserID.String()),
	)
	return res, http.StatusOK, nil
}

func (a *Auth) sessionTTL() time.Duration {
	if a.TTL > 0 {
		return a.TTL
	}
	return 12 * time.Hour
}
