package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregorybednov/bountychain/blockchain"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
	"github.com/gregorybednov/bountychain/yggdrasil"
)

const notInitialized = `config file not found: %v

The node does not seem to be initialized. Create the files with one of:

  bountychain init genesis                  # start a new chain
  bountychain init join <path/genesis.json> # join an existing one

The config file is looked up at: %s
`

func runNode(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	v, err := cfg.LoadViperConfig(defaultConfigPath)
	if err != nil {
		return fmt.Errorf(notInitialized, err, defaultConfigPath)
	}
	settings := cfg.LoadAppSettings(v)
	logger := cfg.NewLogger(os.Stdout, settings.LogLevel)

	config, err := cfg.ReadConfig(defaultConfigPath)
	if err != nil {
		return fmt.Errorf("config not read: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var laddrReturner chan string
	if settings.Overlay {
		laddrReturner = make(chan string, 2)
		go func() {
			if err := yggdrasil.Yggdrasil(ctx, v, laddrReturner, logger); err != nil {
				logger.Errorf("Yggdrasil: %v", err)
				stop()
			}
		}()
	} else if err := cfg.DirectP2P(config); err != nil {
		return err
	}

	return blockchain.Run(ctx, dbPath, config, laddrReturner, logger)
}
