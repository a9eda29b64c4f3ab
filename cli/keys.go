package cli

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/account"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

var keyPath string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the account signing key",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a signing key unless one exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, statErr := os.Stat(keyPath)
		key, err := cfg.WriteOperatorKey(keyPath)
		if err != nil {
			return err
		}
		if statErr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Key %s already exists\n", keyPath)
		}
		printKey(cmd, key)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the account address of the signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := cfg.LoadOperatorKey(keyPath)
		if err != nil {
			return err
		}
		printKey(cmd, key)
		return nil
	},
}

func printKey(cmd *cobra.Command, key ed25519.PrivateKey) {
	pub := key.Public().(ed25519.PublicKey)
	fmt.Fprintf(cmd.OutOrStdout(), "address:    %s\npublic key: %s\n", account.FromPubKey(pub), hex.EncodeToString(pub))
}

func init() {
	keysCmd.PersistentFlags().StringVar(&keyPath, "key", "./config/operator.key", "Path to the signing key")
	keysCmd.AddCommand(keysGenerateCmd, keysShowCmd)
	rootCmd.AddCommand(keysCmd)
}
