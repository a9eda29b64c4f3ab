package yggdrasil

import (
	"fmt"
	"time"

	"github.com/gologme/log"
	"github.com/spf13/viper"
)

// TestConnectivity starts a temporary Yggdrasil node from the [yggdrasil]
// section of config and waits for peer connections. It returns an error if
// the node fails to start or no peer connects within wait.
func TestConnectivity(config *viper.Viper, wait time.Duration, logger *log.Logger) error {
	settings, err := LoadSettings(config)
	if err != nil {
		return err
	}
	cfg, err := settings.nodeConfig(logger)
	if err != nil {
		return err
	}
	if len(cfg.Peers) == 0 {
		return fmt.Errorf("no peers configured")
	}

	n := &node{}
	if n.core, err = newCore(cfg, logger); err != nil {
		return err
	}
	defer n.core.Stop()
	logger.Infof("Testing from %s", n.core.Address().String())

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		for _, p := range n.core.GetPeers() {
			if p.Up {
				logger.Infof("Connected to %s", p.URI)
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("no peers connected after %s", wait)
}
