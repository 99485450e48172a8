package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
)

const (
	CtxClaimsKey        = "authClaims"
	CtxStudentNumberKey = "studentNumber"
)

// Auth enforces Bearer authentication. The three failure modes keep distinct
// messages so clients can tell a missing header from a stale token.
func Auth(tokens *iauth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized.WithMessage("Invalid authorization format"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized.WithMessage("Invalid or expired token"))
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxStudentNumberKey, claims.StudentNumber)

		c.Next()
	}
}

// StudentNumber extracts the authenticated student number from the request
// context. It is empty when the Auth middleware did not run.
func StudentNumber(c *gin.Context) string {
	value, ok := c.Get(CtxStudentNumberKey)
	if !ok {
		return ""
	}
	number, _ := value.(string)
	return number
}
