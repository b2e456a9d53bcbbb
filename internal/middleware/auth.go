package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	accessTokenCookie = "access_token"
	subjectKey        = "subject"
)

// Decider is the access policy as seen by the route gates.
type Decider interface {
	Decide(ctx context.Context, s access.Subject, page model.Page, op model.Operation) bool
	IsSuperuser(ctx context.Context, s access.Subject) bool
}

type Auth struct {
	secret []byte
	policy Decider
	// secure switches cookies to SameSite=None; Secure for cross-origin production use.
	secure bool
	log    *zap.Logger
}

func NewAuth(secret []byte, policy Decider, secureCookies bool, log *zap.Logger) *Auth {
	return &Auth{secret: secret, policy: policy, secure: secureCookies, log: log.Named("auth")}
}

// SetTokenCookie sets access_token as an HttpOnly cookie
func (a *Auth) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", a.secure, true)
}

// ClearTokenCookie removes the access_token cookie
func (a *Auth) ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessTokenCookie, "", -1, "/", "", a.secure, true)
}

func (a *Auth) sameSite() http.SameSite {
	if a.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Authenticate validates the session token from the cookie or the bearer
// header and stores the caller on the context.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie(accessTokenCookie)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		subject, err := access.ParseToken(a.secret, tokenString)
		if err != nil {
			a.log.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(subjectKey, subject)
		c.Set("userID", subject.UserID)
		c.Set("userRole", subject.Role)

		c.Next()
	}
}

// RequireCapability lets the request through only when the policy allows
// op on page for the caller. Must run after Authenticate.
func (a *Auth) RequireCapability(page model.Page, op model.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}

		if !a.policy.Decide(c.Request.Context(), subject, page, op) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+string(page)+"."+string(op)+"'"))
			return
		}

		c.Next()
	}
}

// RequireSuperuser gates the privilege matrix administration, which has no
// page of its own.
func (a *Auth) RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}

		if !a.policy.IsSuperuser(c.Request.Context(), subject) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: superuser required"))
			return
		}

		c.Next()
	}
}

// SubjectFrom returns the caller stored by Authenticate.
func SubjectFrom(c *gin.Context) (access.Subject, bool) {
	v, ok := c.Get(subjectKey)
	if !ok {
		return access.Subject{}, false
	}
	s, ok := v.(access.Subject)
	return s, ok
}
