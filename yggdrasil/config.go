package yggdrasil

import (
	"encoding/hex"
	"fmt"

	"github.com/gologme/log"
	"github.com/spf13/viper"

	yggConfig "github.com/yggdrasil-network/yggdrasil-go/src/config"
	"github.com/yggdrasil-network/yggdrasil-go/src/core"
)

// DefaultListenPort is the overlay port the P2P listener is exposed on.
const DefaultListenPort = 4224

// Settings is the [yggdrasil] section of config.toml.
type Settings struct {
	AdminListen       string
	Listen            []string
	Peers             []string // "auto" discovers public peers
	AllowedPublicKeys []string
	PrivateKeyFile    string
	ListenPort        int
}

// LoadSettings reads the [yggdrasil] section of v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	ygg := v.Sub("yggdrasil")
	if ygg == nil {
		return nil, fmt.Errorf("no [yggdrasil] section in config")
	}
	s := &Settings{
		AdminListen:       ygg.GetString("admin_listen"),
		Listen:            ygg.GetStringSlice("listen"),
		AllowedPublicKeys: ygg.GetStringSlice("allowed_public_keys"),
		PrivateKeyFile:    ygg.GetString("private_key_file"),
		ListenPort:        ygg.GetInt("listen_port"),
	}
	if ygg.GetString("peers") == "auto" {
		s.Peers = []string{"auto"}
	} else {
		s.Peers = ygg.GetStringSlice("peers")
	}
	if s.ListenPort == 0 {
		s.ListenPort = DefaultListenPort
	}
	if s.PrivateKeyFile == "" {
		return nil, fmt.Errorf("yggdrasil.private_key_file is not set")
	}
	return s, nil
}

// nodeConfig turns the settings into an Yggdrasil node configuration with
// the node's persistent key, so the overlay address survives restarts.
func (s *Settings) nodeConfig(logger *log.Logger) (*yggConfig.NodeConfig, error) {
	cfg := yggConfig.GenerateConfig()
	cfg.AdminListen = s.AdminListen
	cfg.Listen = s.Listen
	cfg.AllowedPublicKeys = s.AllowedPublicKeys
	cfg.PrivateKeyPath = s.PrivateKeyFile

	if len(s.Peers) == 1 && s.Peers[0] == "auto" {
		for _, u := range DiscoverPeers(logger, 20, 3) {
			cfg.Peers = append(cfg.Peers, u.String())
		}
	} else {
		cfg.Peers = s.Peers
	}

	key, err := LoadPrivateKey(s.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	cfg.PrivateKey = yggConfig.KeyBytes(key)
	if err := cfg.GenerateSelfSignedCertificate(); err != nil {
		return nil, fmt.Errorf("failed to generate certificate from private key: %w", err)
	}
	return cfg, nil
}

func newCore(cfg *yggConfig.NodeConfig, logger *log.Logger) (*core.Core, error) {
	options := []core.SetupOption{
		core.NodeInfo(cfg.NodeInfo),
		core.NodeInfoPrivacy(cfg.NodeInfoPrivacy),
	}
	for _, addr := range cfg.Listen {
		options = append(options, core.ListenAddress(addr))
	}
	for _, peer := range cfg.Peers {
		options = append(options, core.Peer{URI: peer})
	}
	for intf, peers := range cfg.InterfacePeers {
		for _, peer := range peers {
			options = append(options, core.Peer{URI: peer, SourceInterface: intf})
		}
	}
	for _, allowed := range cfg.AllowedPublicKeys {
		k, err := hex.DecodeString(allowed)
		if err != nil {
			return nil, fmt.Errorf("allowed public key %q: %w", allowed, err)
		}
		options = append(options, core.AllowedPublicKey(k[:]))
	}
	return core.New(cfg.Certificate, logger, options...)
}
