package handlers

import (
	"net/http"

	"carpool-backend/internal/middleware"
	"carpool-backend/internal/models"
	"carpool-backend/internal/services"

	"github.com/gin-gonic/gin"
)

func toResponses(users []models.User) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out
}

// UserGetProfile записи текущего пользователя по ролям
func UserGetProfile(users UserAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := users.Profiles(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": middleware.UserID(c), "users": toResponses(profiles)})
	}
}

// UpdateDeviceToken регистрирует токен устройства для push-уведомлений
func UpdateDeviceToken(users UserAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.RegisterDeviceTokenInput
		if !bindJSON(c, &in) {
			return
		}

		profiles, err := users.RegisterDeviceToken(c.Request.Context(), middleware.UserID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Токен устройства обновлен", "users": toResponses(profiles)})
	}
}
