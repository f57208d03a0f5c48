package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/handler"
	"github.com/waflow/waflow/pkg/auth"
)

const contextAccountID = "account_id"

// Auth validates the bearer token and stores the account identity on the
// request context.
func Auth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing bearer token"))
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			return
		}

		c.Set(contextAccountID, claims.AccountID)
		c.Next()
	}
}

// AccountID returns the authenticated account for the request. Routes
// behind Auth always have one.
func AccountID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(contextAccountID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
