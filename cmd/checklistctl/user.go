package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/auth"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (c *cli) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	cmd.AddCommand(c.newUserAddCmd())
	return cmd
}

func (c *cli) newUserAddCmd() *cobra.Command {
	var (
		role        string
		displayName string
		password    string
	)

	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an API user",
		Long: `Create an API user directly in the store. This is how the first admin is
created; later users can be registered through the API by an admin.

The password is read from --password or the CHECKLIST_PASSWORD environment variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CHECKLIST_PASSWORD")
			}
			authService, err := auth.NewService(c.cfg.Auth.JWTSecret, c.cfg.Auth.JWTExpiry)
			if err != nil {
				return err
			}
			if err := authService.ValidateUsername(args[0]); err != nil {
				return err
			}
			if err := authService.ValidatePassword(password); err != nil {
				return err
			}
			if !models.IsValidRole(models.Role(role)) {
				return fmt.Errorf("invalid role %q", role)
			}
			hash, err := authService.HashPassword(password)
			if err != nil {
				return err
			}

			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				_, err := stores.Users.FindUserByUsername(cmd.Context(), args[0])
				if err == nil {
					return fmt.Errorf("user %q already exists", args[0])
				}
				if !errors.Is(err, db.ErrUserNotFound) {
					return err
				}
				user := models.User{
					ID:           primitive.NewObjectID(),
					Username:     args[0],
					DisplayName:  displayName,
					PasswordHash: hash,
					Role:         models.Role(role),
				}
				if err := stores.Users.InsertUser(cmd.Context(), user); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s\n", user.Role, user.Username)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&role, "role", string(models.RoleInspector), "admin, manager, inspector or viewer")
	flags.StringVar(&displayName, "display-name", "", "name shown in the API")
	flags.StringVar(&password, "password", "", "password (default $CHECKLIST_PASSWORD)")
	return cmd
}
