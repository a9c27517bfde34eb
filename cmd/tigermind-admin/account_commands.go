package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/repository"
	"github.com/Tech-Dev-Skill/tiger-mind/internal/service"
)

func newCreateAdminCommand(ctx *commandContext) *cobra.Command {
	var (
		email    string
		password string
		fullName string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin or super admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, err := models.ParseRole(role)
			if err != nil || !parsed.IsAdmin() {
				return fmt.Errorf("role must be admin or super_admin, got %q", role)
			}
			db, err := ctx.ensureDB(cmd.Context())
			if err != nil {
				return err
			}

			auth := service.NewAuthService(repository.NewUserRepository(db), nil, nil, validator.New(), logr, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				Issuer:            cfg.JWT.Issuer,
			})
			info, err := auth.CreateStaffAccount(cmd.Context(), models.AdminRegisterRequest{
				Email:    strings.TrimSpace(email),
				Password: password,
				FullName: strings.TrimSpace(fullName),
				Role:     parsed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", info.Role, info.Email, info.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleSuperAdmin), "admin or super_admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSetRoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change the role of an existing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logr, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			role, err := models.ParseRole(args[1])
			if err != nil {
				return err
			}
			db, err := ctx.ensureDB(cmd.Context())
			if err != nil {
				return err
			}

			users := repository.NewUserRepository(db)
			profile, err := users.FindByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(args[0])))
			if err != nil {
				return fmt.Errorf("find %s: %w", args[0], err)
			}
			profiles := service.NewProfileService(users, validator.New(), logr)
			if err := profiles.SetRole(cmd.Context(), "", profile.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", profile.Email, role)
			return nil
		},
	}
}
