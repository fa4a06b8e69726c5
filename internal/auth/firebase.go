package auth

import (
	"context"

	"carpool-backend/internal/apperrors"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// IDTokenVerifier часть *auth.Client, нужная для проверки ID токенов
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier проверяет Firebase ID токены; subject это UID пользователя
type FirebaseVerifier struct {
	client IDTokenVerifier
}

func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil || token == nil || token.UID == "" {
		return "", apperrors.Unauthenticated("Недействительный токен")
	}
	return token.UID, nil
}
