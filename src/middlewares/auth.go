package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/policy"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const principalKey = "principal"

type userLookup interface {
	FindByIDAllTenants(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware authenticates the bearer token. Impersonation tokens are only
// honoured while their session side channel exists.
func AuthMiddleware(secret []byte, users userLookup, sessions lib.SessionStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		scheme, reqToken, ok := strings.Cut(bearerToken, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(reqToken) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		log := lib.LoggerFromContext(ctx.Request.Context())
		claims, err := ParseToken(secret, strings.TrimSpace(reqToken))
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		principal, err := principalFromClaims(claims)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if users != nil {
			user, err := users.FindByIDAllTenants(ctx.Request.Context(), principal.UserID)
			if err != nil || user.Role != principal.Role {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}
		if principal.Impersonating() {
			if sessions == nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			if _, err := sessions.Load(ctx.Request.Context(), principal.SessionID); err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session ended"})
				return
			}
		}
		ctx.Set(principalKey, principal)
		ctx.Set("id", principal.UserID)
		ctx.Set("email", principal.Email)
		ctx.Set("role", principal.Role)
		ctx.Next()
	}
}

// ParseToken validates signature and expiry of an HS256 token.
func ParseToken(secret []byte, raw string) (*types.Claims, error) {
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

func principalFromClaims(c *types.Claims) (policy.Principal, error) {
	uid, err := uuid.Parse(c.Subject)
	if err != nil {
		return policy.Principal{}, err
	}
	p := policy.Principal{UserID: uid, Email: c.Email, Role: c.Role, SessionID: c.SessionID}
	if c.TenantID != "" {
		if p.TenantID, err = uuid.Parse(c.TenantID); err != nil {
			return policy.Principal{}, err
		}
	}
	if c.Impersonating() {
		if p.Impersonator, err = uuid.Parse(c.Impersonator); err != nil {
			return policy.Principal{}, err
		}
	}
	return p, nil
}

// RequireTenantMatch rejects tokens minted for a different tenant than the
// one the host resolved to.
func RequireTenantMatch(ctx *gin.Context) {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	tenant := Tenant(ctx)
	if principal.TenantID != tenant.ID {
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	ctx.Next()
}

// Authorize gates a route on the policy table.
func Authorize(resource policy.Resource, action policy.Action) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal, ok := GetPrincipal(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !policy.Evaluate(principal, resource, action) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		ctx.Next()
	}
}

func GetPrincipal(ctx *gin.Context) (policy.Principal, bool) {
	v, ok := ctx.Get(principalKey)
	if !ok {
		return policy.Principal{}, false
	}
	p, ok := v.(policy.Principal)
	return p, ok
}
