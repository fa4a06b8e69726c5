package middleware

import (
	"net/http"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/auth"

	"github.com/gin-gonic/gin"
)

// UserIDKey ключ идентификатора пользователя в контексте gin
const UserIDKey = "user_id"

// Auth проверяет Bearer токен и кладет subject пользователя в контекст
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}

		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID идентификатор аутентифицированного пользователя
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func abortUnauthenticated(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Kind != apperrors.KindUnauthenticated {
		appErr = apperrors.Unauthenticated("Недействительный токен")
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": appErr.Message, "code": appErr.Code})
}
