package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/agentwriter-backend/internal/app"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// TokenCmd issues an access token for a user, for local testing against the API.
func TokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			log := logger.NewNop()
			cfg, err := app.LoadConfig(log)
			if err != nil {
				return err
			}
			if cfg.JWTSecretKey == "" {
				return fmt.Errorf("JWT_SECRET_KEY is not set")
			}
			token, err := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL).IssueAccessToken(userID)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

// RegenerateCmd restarts generation for a content item on behalf of its owner.
func RegenerateCmd() *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "regenerate <content-id>",
		Short: "Enqueue a new generation run for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid content id %q: %w", args[0], err)
			}
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", userFlag, err)
			}
			a, err := app.New(cmd.Context(), app.ModeAdmin)
			if err != nil {
				return err
			}
			defer closeApp(a)

			c, err := a.Services.Content.Regenerate(cmd.Context(), userID, contentID)
			if err != nil {
				return err
			}
			fmt.Printf("content %s: run %d, status %s\n", c.ID, c.Run, c.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "owner user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
