package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/config"
	"github.com/jonathan/gigmatch/internal/server"
	"github.com/jonathan/gigmatch/internal/server/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an API token for local testing",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleClient, "client, developer or admin")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(tokenUser)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	switch tokenRole {
	case middleware.RoleClient, middleware.RoleDeveloper, middleware.RoleAdmin:
	default:
		return fmt.Errorf("invalid --role %q", tokenRole)
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(userID, tokenRole)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
