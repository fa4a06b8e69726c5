package cmd

import (
	"errors"
	"fmt"
	"time"

	"carpool-backend/internal/auth"

	"github.com/spf13/cobra"
)

func init() {
	tokenCmd.Flags().String("sub", "", "Идентификатор пользователя (subject)")
	tokenCmd.Flags().Duration("ttl", 365*24*time.Hour, "Срок действия токена")
	_ = tokenCmd.MarkFlagRequired("sub")
}

// tokenCmd выпускает HS256 токен для разработки и тестирования
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Сгенерировать JWT для пользователя",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET не задан")
		}

		subject, _ := cmd.Flags().GetString("sub")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.GenerateJWT(cfg.Auth.JWTSecret, subject, ttl)
		if err != nil {
			return fmt.Errorf("ошибка генерации токена: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
