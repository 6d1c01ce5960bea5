package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxUserKey   = "authUser"
)

// UserLoader resolves the account behind a validated token.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Auth enforces JWT authentication and reloads the user so deactivated accounts lose access
// immediately.
func Auth(jwt *iauth.JWTService, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			unauthorized(c)
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			unauthorized(c)
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.KindOf(err) == errors.KindNotFound {
				unauthorized(c)
				return
			}
			response.Error(c, err)
			c.Abort()
			return
		}
		if !user.IsActive {
			unauthorized(c)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserKey, user)

		c.Next()
	}
}

// RequireAdmin allows only administrators through. It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(CtxUserKey)
		if !ok {
			unauthorized(c)
			return
		}
		user, _ := value.(*models.User)
		if !user.IsAdmin() {
			response.Error(c, errors.ErrForbidden.WithMessage("Admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}
