package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cfg "github.com/gregorybednov/bountychain/configfunctions"
	"github.com/gregorybednov/bountychain/yggdrasil"
)

var testWait time.Duration

var testYggdrasilCmd = &cobra.Command{
	Use:   "testYggdrasil",
	Short: "Test Yggdrasil connectivity without Tendermint",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cfg.LoadViperConfig(defaultConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		logger := cfg.NewLogger(os.Stdout, cfg.LoadAppSettings(v).LogLevel)
		if err := yggdrasil.TestConnectivity(v, testWait, logger); err != nil {
			return fmt.Errorf("test failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Yggdrasil connectivity test successful")
		return nil
	},
}

func init() {
	testYggdrasilCmd.Flags().DurationVar(&testWait, "wait", 10*time.Second, "How long to wait for a peer")
	rootCmd.AddCommand(testYggdrasilCmd)
}
