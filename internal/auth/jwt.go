package auth

import (
	"context"
	"time"

	"carpool-backend/internal/apperrors"

	"github.com/golang-jwt/jwt/v4"
)

// JWTVerifier проверяет HS256 токены, subject берется из claim "sub"
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthenticated("Недействительный токен")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthenticated("Недействительный ID пользователя")
	}
	return claims.Subject, nil
}

// GenerateJWT выпускает токен для пользователя subject
func GenerateJWT(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
