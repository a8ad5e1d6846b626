package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/capiscio/wascap/pkg/keys"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	keyRole    string
	keyName    string
	keyShowDID bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage signing keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 key pair",
	Long: `Generate a new Ed25519 key pair and store it in the key directory.

The key is saved as a JWK whose key ID is the did:key identifier. The
identifier is what appears as issuer or subject in signed claims.`,
	Example: `  # Generate an account key for signing modules
  wascap key gen --role account --name acme

  # Generate a module key and only print its did:key
  wascap key gen --role module --name echo --show-did`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		role, err := keys.ParseRole(keyRole)
		if err != nil {
			return err
		}
		name := keyName
		if name == "" {
			name = string(role)
		}

		kp, err := keys.New(role)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Add(name, kp); err != nil {
			return err
		}
		logger.Debug("stored key", zap.String("name", name), zap.String("role", string(role)))

		out := cmd.OutOrStdout()
		if keyShowDID {
			fmt.Fprintln(out, kp.PublicKey())
			return nil
		}
		fmt.Fprintf(out, "✅ %s key %q saved to %s\n", role, name, store.Dir())
		fmt.Fprintf(out, "🔑 did:key: %s\n", kp.PublicKey())
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		entries, err := store.List()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tROLE\tDID")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Role, e.KeyID)
		}
		return tw.Flush()
	},
}

var keyExportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Print the public JWK of a stored key",
	Long: `Print the public half of a stored key as a JWK. The private key is
never printed; share the output with hosts that verify your modules.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		kp, err := store.Get(args[0])
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(kp.PublicJWK())
	},
}

var keyRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  removed %s\n", args[0])
		return nil
	},
}

func roleNames() string {
	names := make([]string, len(keys.Roles))
	for i, r := range keys.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd, keyListCmd, keyExportCmd, keyRmCmd)

	keyGenCmd.Flags().StringVar(&keyRole, "role", string(keys.RoleAccount), "Key role: "+roleNames())
	keyGenCmd.Flags().StringVar(&keyName, "name", "", "Name in the key directory (default: the role)")
	keyGenCmd.Flags().BoolVar(&keyShowDID, "show-did", false, "Only output did:key to stdout (for scripting)")
}
