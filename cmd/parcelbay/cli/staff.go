package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/parcelbay/parcelbay/internal/handler"
	"github.com/parcelbay/parcelbay/internal/model"
)

func newStaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
		Long:  "Create and list the administrator and warehouse accounts that sign in to the staff API.",
	}

	cmd.AddCommand(newStaffCreateCmd())
	cmd.AddCommand(newStaffListCmd())

	return cmd
}

// ---------- staff create ----------

func newStaffCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new staff account",
		Example: `  parcelbay staff create --email ops@example.com --role admin
  parcelbay staff create --email floor@example.com --role warehouse  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaffCreate(email, password, name, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Staff email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", model.RoleWarehouse, "Role: admin or warehouse")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runStaffCreate(email, password, name, role string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}
	if role != model.RoleAdmin && role != model.RoleWarehouse {
		return fmt.Errorf("invalid role %q (want admin or warehouse)", role)
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
		Role:         role,
		UserCode:     handler.NewUserCode(),
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("create staff account: %w", err)
	}

	fmt.Printf("Created %s account %q (%s)\n", role, email, user.UserCode)
	return nil
}

// promptPassword reads a password twice without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

// ---------- staff list ----------

func newStaffListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaffList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStaffList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background(), "")
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}

	type staffRow struct {
		Code   string `json:"code"`
		Email  string `json:"email"`
		Name   string `json:"name"`
		Role   string `json:"role"`
		Active bool   `json:"active"`
	}

	var rows []staffRow
	for _, u := range users {
		if !u.IsStaff() {
			continue
		}
		rows = append(rows, staffRow{
			Code:   u.UserCode,
			Email:  u.Email,
			Name:   u.Name,
			Role:   u.Role,
			Active: u.IsActive,
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No staff accounts. Use 'parcelbay staff create' to create one.")
		return nil
	}

	fmt.Printf("%-14s %-30s %-20s %-12s %-8s\n", "CODE", "EMAIL", "NAME", "ROLE", "ACTIVE")
	fmt.Printf("%-14s %-30s %-20s %-12s %-8s\n", "----", "-----", "----", "----", "------")
	for _, u := range rows {
		active := "yes"
		if !u.Active {
			active = "no"
		}
		fmt.Printf("%-14s %-30s %-20s %-12s %-8s\n", u.Code, u.Email, u.Name, u.Role, active)
	}

	return nil
}
