package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage courier and warehouse API keys",
		Long:    "Create, list, and revoke the API keys couriers and warehouse integrations use to authenticate.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		courier     string
		purpose     string
		description string
		expiresDays int
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  parcelbay key create --courier KCD --permissions manifests:read,manifests:write
  parcelbay key create --purpose warehouse --description "scanner station 2"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(courier, purpose, description, expiresDays, permissions)
		},
	}

	cmd.Flags().StringVar(&courier, "courier", "", "Courier code to bind the key to (required for courier keys)")
	cmd.Flags().StringVar(&purpose, "purpose", model.KeyPurposeCourier, "Key purpose: courier or warehouse")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description for the key")
	cmd.Flags().IntVar(&expiresDays, "expires-days", 365, "Days until the key expires")
	cmd.Flags().StringSliceVar(&permissions, "permissions", []string{model.PermManifestsRead}, "Permissions granted to the key")

	return cmd
}

func runKeyCreate(courier, purpose, description string, expiresDays int, permissions []string) error {
	if purpose != model.KeyPurposeCourier && purpose != model.KeyPurposeWarehouse {
		return fmt.Errorf("invalid purpose %q (want courier or warehouse)", purpose)
	}
	courier = strings.ToUpper(courier)
	if purpose == model.KeyPurposeCourier && courier == "" {
		return fmt.Errorf("--courier is required for courier keys")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	manager := auth.NewKeyManager(st)
	issued, err := manager.Issue(context.Background(), courier, purpose, description, expiresDays, permissions, "cli")
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:         %s\n", issued.RawKey)
	fmt.Printf("  Purpose:     %s\n", issued.Metadata.Purpose)
	if courier != "" {
		fmt.Printf("  Courier:     %s\n", courier)
	}
	fmt.Printf("  Permissions: %s\n", strings.Join(issued.Metadata.Permissions(), ", "))
	fmt.Printf("  Expires:     %s\n", issued.Metadata.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		Prefix  string `json:"prefix"`
		Purpose string `json:"purpose"`
		Courier string `json:"courier,omitempty"`
		Usage   int64  `json:"usage"`
		Active  bool   `json:"active"`
		Expires string `json:"expires"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		rows[i] = keyRow{
			Prefix:  k.KeyPrefix,
			Purpose: k.Purpose,
			Courier: k.OwnerCourierCode,
			Usage:   k.UsageCount,
			Active:  k.IsActive,
			Expires: k.ExpiresAt.Format("2006-01-02"),
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'parcelbay key create' to create one.")
		return nil
	}

	fmt.Printf("%-16s %-12s %-10s %-10s %-8s %-12s\n", "PREFIX", "PURPOSE", "COURIER", "USAGE", "ACTIVE", "EXPIRES")
	fmt.Printf("%-16s %-12s %-10s %-10s %-8s %-12s\n", "------", "-------", "-------", "-----", "------", "-------")
	for _, k := range rows {
		active := "yes"
		if !k.Active {
			active = "no"
		}
		fmt.Printf("%-16s %-12s %-10s %-10d %-8s %-12s\n", k.Prefix, k.Purpose, k.Courier, k.Usage, active, k.Expires)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	keys, err := st.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	// Find key whose prefix starts with the given prefix
	var matchedKey *model.APIKey
	for i := range keys {
		if strings.HasPrefix(keys[i].KeyPrefix, prefix) {
			matchedKey = &keys[i]
			break
		}
	}
	if matchedKey == nil {
		return fmt.Errorf("no API key found with prefix %q", prefix)
	}

	if err := st.RevokeAPIKey(ctx, matchedKey.ID, "cli"); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key with prefix %q\n", matchedKey.KeyPrefix)
	return nil
}
