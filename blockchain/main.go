package blockchain

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/gologme/log"
	"github.com/prometheus/client_golang/prometheus"
	abci "github.com/tendermint/tendermint/abci/types"
	cfg "github.com/tendermint/tendermint/config"
	tmlog "github.com/tendermint/tendermint/libs/log"
	nm "github.com/tendermint/tendermint/node"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	"github.com/tendermint/tendermint/proxy"
	tmTypes "github.com/tendermint/tendermint/types"

	"github.com/gregorybednov/bountychain/metrics"
)

func openBadger(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithTruncate(true))
}

// newTendermint builds the node around app. When laddrReturner is not nil
// the overlay hands over the P2P listen address first and then the
// persistent peers rewritten to local tunnel ends.
func newTendermint(app abci.Application, config *cfg.Config, laddrReturner chan string, logger *log.Logger) (*nm.Node, error) {
	if laddrReturner != nil {
		laddr, ok := <-laddrReturner
		if !ok {
			return nil, errors.New("overlay stopped before handing over the P2P address")
		}
		peers, ok := <-laddrReturner
		if !ok {
			return nil, errors.New("overlay stopped before handing over the persistent peers")
		}
		config.P2P.ListenAddress = "tcp://" + laddr
		config.P2P.PersistentPeers = peers
	}

	var pv tmTypes.PrivValidator
	if _, err := os.Stat(config.PrivValidatorKeyFile()); err == nil {
		pv = privval.LoadFilePV(
			config.PrivValidatorKeyFile(),
			config.PrivValidatorStateFile(),
		)
	} else {
		logger.Warnln("priv_validator_key.json not found. Node will run as non-validator.")
		pv = tmTypes.NewMockPV()
	}

	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load node key: %w", err)
	}

	clientCreator := proxy.NewLocalClientCreator(app)
	tmLogger := tmlog.NewTMLogger(tmlog.NewSyncWriter(os.Stdout))

	return nm.NewNode(
		config,
		pv,
		nodeKey,
		clientCreator,
		nm.DefaultGenesisDocProviderFunc(config),
		nm.DefaultDBProvider,
		nm.DefaultMetricsProvider(config.Instrumentation),
		tmLogger,
	)
}

// Run serves the bounty ledger until ctx is cancelled or the node quits.
func Run(ctx context.Context, dbPath string, config *cfg.Config, laddrReturner chan string, logger *log.Logger) error {
	db, err := openBadger(dbPath)
	if err != nil {
		return fmt.Errorf("open badger db: %w", err)
	}
	defer db.Close()

	collector := metrics.New()
	if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	app, err := NewBountyApp(db, logger, collector)
	if err != nil {
		return fmt.Errorf("load app state: %w", err)
	}
	logger.Infof("Bounty ledger at height %d", app.lastHeight)

	node, err := newTendermint(app, config, laddrReturner, logger)
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	if err := node.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-node.Quit():
		return errors.New("node stopped")
	}
	if err := node.Stop(); err != nil {
		logger.Errorf("Stop node: %v", err)
	}
	node.Wait()
	return nil
}
