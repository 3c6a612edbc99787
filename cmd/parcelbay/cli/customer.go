package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/parcelbay/parcelbay/internal/handler"
	"github.com/parcelbay/parcelbay/internal/model"
)

func newCustomerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customer accounts",
	}

	cmd.AddCommand(newCustomerCreateCmd())

	return cmd
}

func newCustomerCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new customer account",
		Example: `  parcelbay customer create --email jane@example.com --name "Jane Doe"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCustomerCreate(email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Customer email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runCustomerCreate(email, password, name string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	if password == "" {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	user := &model.User{
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Name:         name,
		Role:         model.RoleCustomer,
		UserCode:     handler.NewUserCode(),
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("create customer account: %w", err)
	}

	fmt.Printf("Created customer account %q (%s)\n", email, user.UserCode)
	return nil
}
