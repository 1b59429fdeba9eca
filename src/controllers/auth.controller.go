package controllers

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"menusync/src/lib"
	"menusync/src/middlewares"
	"menusync/src/models"
	"menusync/src/policy"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	return h
})

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Auth signs principals in and out of impersonation.
type Auth struct {
	Users    *repository.UserRepository
	Sessions lib.SessionStore
	Secret   []byte
	TTL      time.Duration
	Now      func() time.Time
}

// AuthLogin signs in a user of the tenant the request host resolved to.
func (a *Auth) AuthLogin(ctx *gin.Context) (*TokenResponse, int, error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenant := middlewares.Tenant(ctx)
	user, err := a.Users.FindByEmail(ctx.Request.Context(), tenant.ID, strings.ToLower(body.Email))
	return a.login(ctx, user, err, body.Password)
}

// AdminLogin signs in a super-admin. No tenant is involved.
func (a *Auth) AdminLogin(ctx *gin.Context) (*TokenResponse, int, error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	user, err := a.Users.FindSuperAdminByEmail(ctx.Request.Context(), strings.ToLower(body.Email))
	return a.login(ctx, user, err, body.Password)
}

func (a *Auth) login(ctx *gin.Context, user *models.User, lookupErr error, password string) (*TokenResponse, int, error) {
	if errors.Is(lookupErr, repository.ErrNotFound) {
		// keep timing close to the found case
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, http.StatusUnauthorized, ErrInvalidCredentials
	}
	if lookupErr != nil {
		return nil, http.StatusInternalServerError, lookupErr
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, http.StatusUnauthorized, ErrInvalidCredentials
	}
	res, err := a.issue(principalOf(user, uuid.Nil))
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(ctx.Request.Context()).Info("user signed in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)
	return res, http.StatusOK, nil
}

func principalOf(user *models.User, impersonator uuid.UUID) policy.Principal {
	p := policy.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		SessionID:    uuid.NewString(),
		Impersonator: impersonator,
	}
	if user.TenantID != nil {
		p.TenantID = *user.TenantID
	}
	return p
}

func (a *Auth) issue(p policy.Principal) (*TokenResponse, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	token, expires, err := IssueToken(a.Secret, p, ttl, now)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresAt: expires}, nil
}

// IssueToken signs an HS256 token for the principal.
func IssueToken(secret []byte, p policy.Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expires := now.Add(ttl)
	claims := types.Claims{
		Email:     p.Email,
		Role:      p.Role,
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	if p.TenantID != uuid.Nil {
		claims.TenantID = p.TenantID.String()
	}
	if p.Impersonating() {
		claims.Impersonator = p.Impersonator.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}
