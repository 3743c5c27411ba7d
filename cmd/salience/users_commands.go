package main

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"salience/internal/auth"
	"salience/internal/config"
	"salience/internal/store"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Account management",
	}

	usersCmd.AddCommand(newUsersCreateCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))

	return usersCmd
}

func newUsersCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		email    string
		name     string
		password string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" || strings.TrimSpace(name) == "" {
				return fmt.Errorf("--email and --name are required")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				entered, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = string(entered)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			role := store.RoleSpecialist
			if admin {
				role = store.RoleAdmin
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				user, err := st.CreateUser(cmd.Context(), store.NewUser{
					Email:        email,
					Name:         name,
					PasswordHash: hash,
					Role:         role,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s account %s (id %d)\n", user.Role, user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Create an admin account instead of a specialist")
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				users, err := st.ListUsers(cmd.Context(), true)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No accounts")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, user := range users {
					active := "yes"
					if !user.IsActive {
						active = "no"
					}
					rows = append(rows, []string{
						strconv.FormatInt(user.ID, 10),
						user.Email,
						user.Name,
						string(user.Role),
						active,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Email", "Name", "Role", "Active"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
