package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

var initCmd = &cobra.Command{
	Use:   "init [genesis|join] [genesis-path]",
	Short: "Initialize the node: genesis or join",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "genesis":
			_, v, err := cfg.InitGenesis(chainName, defaultConfigPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Genesis node initialized. Operator key: %s\n", v.GetString("app.operator_key_file"))
		case "join":
			if len(args) < 2 {
				return fmt.Errorf("path to genesis.json is required")
			}
			if _, _, err := cfg.InitJoiner(chainName, defaultConfigPath, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Joiner node initialized.")
		default:
			return fmt.Errorf("unknown init mode: %s", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
