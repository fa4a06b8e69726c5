package services

import (
	"context"
	"fmt"

	"carpool-backend/internal/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseClients клиенты одного приложения Firebase
type FirebaseClients struct {
	Auth      *auth.Client
	Messaging *messaging.Client
}

// NewFirebaseClients инициализирует приложение Firebase; без файла ключей используются
// учетные данные окружения (GOOGLE_APPLICATION_CREDENTIALS)
func NewFirebaseClients(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseClients, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Firebase: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Firebase Auth: %w", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента FCM: %w", err)
	}

	return &FirebaseClients{Auth: authClient, Messaging: messagingClient}, nil
}
