package auth

import (
	"context"
	"strings"

	"carpool-backend/internal/apperrors"
)

// Verifier проверяет токен и возвращает идентификатор пользователя (subject)
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// BearerToken извлекает токен из заголовка "Authorization: Bearer <token>"
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.Unauthenticated("Отсутствует токен авторизации")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperrors.Unauthenticated("Неверный формат токена")
	}
	return parts[1], nil
}
