package httpkit

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"crm_backend/platform/config"
	"crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const callerKey = "httpkit.caller"

var errInvalidToken = errors.New("invalid token")

// Caller is the authenticated principal behind a request.
type Caller struct {
	userID   uuid.UUID
	tenantID *uuid.UUID
	roles    []string
}

func (c *Caller) UserID() uuid.UUID { return c.userID }

// TenantID is nil for tokens that are not scoped to an organization.
func (c *Caller) TenantID() *uuid.UUID { return c.tenantID }

func (c *Caller) HasRole(role string) bool { return slices.Contains(c.roles, role) }

// accessClaims is the payload of an access token issued by the identity service.
type accessClaims struct {
	jwt.RegisteredClaims
	Type     string   `json:"type"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// AuthRequired admits requests bearing a valid HMAC-signed access token.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWith(c, http.StatusUnauthorized, "missing token")
			return
		}

		caller, err := parseCaller(raw, []byte(cfg.GetJWTAccessSecret()))
		if err != nil {
			abortWith(c, http.StatusUnauthorized, errInvalidToken.Error())
			return
		}
		SetCaller(c, caller.userID, caller.tenantID, caller.roles...)

		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, caller.userID.String())
		if caller.tenantID != nil {
			ctx = context.WithValue(ctx, logger.TenantIDKey, caller.tenantID.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller == nil || !caller.HasRole(role) {
			abortWith(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// SetCaller attaches a principal to the request. AuthRequired is the only
// production caller.
func SetCaller(c *gin.Context, userID uuid.UUID, tenantID *uuid.UUID, roles ...string) {
	c.Set(callerKey, &Caller{userID: userID, tenantID: tenantID, roles: roles})
}

// CallerFrom returns nil when AuthRequired did not run or rejected the request.
func CallerFrom(c *gin.Context) *Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*Caller)
	return caller
}

// MustGetTenant resolves the caller and its tenant, aborting with 401 when
// there is no caller and 403 when the token carries no tenant.
func MustGetTenant(c *gin.Context) (*Caller, uuid.UUID, bool) {
	caller := CallerFrom(c)
	if caller == nil {
		abortWith(c, http.StatusUnauthorized, "unauthorized")
		return nil, uuid.Nil, false
	}
	if caller.tenantID == nil {
		abortWith(c, http.StatusForbidden, "tenant scope required")
		return nil, uuid.Nil, false
	}
	return caller, *caller.tenantID, true
}

func parseCaller(raw string, secret []byte) (*Caller, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	if err != nil {
		return nil, errInvalidToken
	}
	if claims.Type != "access" {
		return nil, errInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errInvalidToken
	}
	caller := &Caller{userID: userID, roles: claims.Roles}

	if tid := strings.TrimSpace(claims.TenantID); tid != "" {
		parsed, err := uuid.Parse(tid)
		if err != nil {
			return nil, errInvalidToken
		}
		caller.tenantID = &parsed
	}
	return caller, nil
}

func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
