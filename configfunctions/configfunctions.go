package configfunctions

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	tmTypes "github.com/tendermint/tendermint/types"
	"github.com/yggdrasil-network/yggstack/src/types"

	"github.com/gregorybednov/bountychain/account"
	btypes "github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/persistentpeersparser"
	"github.com/gregorybednov/bountychain/yggdrasil"
)

const (
	// NativeSymbol is the token minted to the operator at genesis.
	NativeSymbol = "BOUNTY"
	// DefaultP2PPort is the port plain TCP peers are dialled on when an
	// entry has none.
	DefaultP2PPort = 26656
)

// genesisSupply is 1,000,000 tokens with 18 decimals.
var genesisSupply = new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func DefaultConfig() *cfg.Config {
	return cfg.DefaultConfig()
}

func configDir(configPath string) string {
	return filepath.Dir(configPath)
}

func rootDir(configPath string) string {
	return filepath.Dir(filepath.Dir(configPath))
}

// GenesisAppState is the ledger state a new chain starts with: owner
// administers the platform, collects the fees and holds the whole native
// supply.
func GenesisAppState(owner account.Address) btypes.AppState {
	return btypes.AppState{
		Owner:        owner.String(),
		FeeRecipient: owner.String(),
		Tokens: []btypes.GenesisToken{{
			Symbol:   NativeSymbol,
			Name:     "Bounty Token",
			Decimals: 18,
			Owner:    owner.String(),
			Balances: []btypes.GenesisBalance{{Address: owner.String(), Amount: genesisSupply.String()}},
		}},
	}
}

// InitTendermintFiles creates the validator and node keys under the root of
// config. A genesis node also writes genesis.json carrying appState.
func InitTendermintFiles(config *cfg.Config, isGenesis bool, chainName string, appState json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(config.PrivValidatorKeyFile()), 0700); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(config.RootDir, "data"), 0700); err != nil {
		return err
	}

	pv := privval.LoadOrGenFilePV(
		config.PrivValidatorKeyFile(),
		config.PrivValidatorStateFile(),
	)
	if _, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile()); err != nil {
		return err
	}
	key, err := pv.GetPubKey()
	if err != nil {
		return err
	}

	if !isGenesis {
		return nil
	}
	genDoc := &tmTypes.GenesisDoc{
		ChainID:         chainName,
		GenesisTime:     time.Now(),
		ConsensusParams: tmTypes.DefaultConsensusParams(),
		Validators: []tmTypes.GenesisValidator{
			{
				Address: key.Address(),
				PubKey:  key,
				Power:   10,
				Name:    config.Moniker,
			},
		},
		AppHash:  []byte{},
		AppState: appState,
	}
	return genDoc.SaveAs(config.GenesisFile())
}

// WriteConfig writes config.toml for config at configPath, including the
// [app] and [yggdrasil] sections, and returns it as a viper instance.
// Persistent peers come from genesis.json when it lists them, otherwise the
// node points at itself through the overlay.
func WriteConfig(config *cfg.Config, configPath string, nodeID p2p.ID) (*viper.Viper, error) {
	yggKeyPath := filepath.Join(configDir(configPath), "yggdrasil.key")
	if err := yggdrasil.WritePrivateKey(yggKeyPath); err != nil {
		return nil, fmt.Errorf("write yggdrasil key: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.Set("moniker", config.Moniker)
	v.Set("db_backend", config.DBBackend)
	v.Set("db_dir", config.DBPath)
	v.Set("log_level", config.LogLevel)
	v.Set("log_format", config.LogFormat)
	v.Set("genesis_file", config.Genesis)
	v.Set("node_key_file", config.NodeKey)
	v.Set("priv_validator_key_file", config.PrivValidatorKey)
	v.Set("priv_validator_state_file", config.PrivValidatorState)
	v.Set("abci", config.ABCI)
	v.Set("filter_peers", config.FilterPeers)

	v.Set("app", map[string]any{
		"log_level":         DefaultLogLevel,
		"overlay":           true,
		"operator_key_file": filepath.Join(configDir(configPath), "operator.key"),
	})

	v.Set("yggdrasil", map[string]any{
		"admin_listen":        "none",
		"peers":               "auto",
		"allowed_public_keys": []string{},
		"private_key_file":    yggKeyPath,
		"listen_port":         yggdrasil.DefaultListenPort,
	})

	peers := ReadP2Peers(configPath)
	if peers == "" && nodeID != "" {
		peers = selfPeer(nodeID, v)
	}
	config.P2P.PersistentPeers = peers

	v.Set("p2p", map[string]any{
		"laddr":            strconv.Itoa(yggdrasil.DefaultListenPort) + ":127.0.0.1:8000",
		"external_address": "",
		"upnp":             false,
		"persistent_peers": config.P2P.PersistentPeers,
		"addr_book_file":   "config/addrbook.json",
		"addr_book_strict": false,
	})

	v.Set("rpc", map[string]any{
		"laddr": config.RPC.ListenAddress,
	})

	v.Set("instrumentation", map[string]any{
		"prometheus":             true,
		"prometheus_listen_addr": config.Instrumentation.PrometheusListenAddr,
		"namespace":              config.Instrumentation.Namespace,
	})

	if err := v.WriteConfigAs(configPath); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	return v, nil
}

func selfPeer(nodeID p2p.ID, v *viper.Viper) string {
	return fmt.Sprintf("%s@ygg://[%s]:%d", nodeID, yggdrasil.GetYggdrasilAddress(v), yggdrasil.DefaultListenPort)
}

func LoadViperConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	err := v.ReadInConfig()
	return v, err
}

func ReadConfig(configFile string) (*cfg.Config, error) {
	v, err := LoadViperConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("viper read config: %w", err)
	}

	config := cfg.DefaultConfig()
	config.SetRoot(rootDir(configFile))
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("viper unmarshal: %w", err)
	}
	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return config, nil
}

// ReadP2Peers returns the p2peers entry a genesis node left in genesis.json.
func ReadP2Peers(configFile string) string {
	var genesis map[string]any
	genesisJson, err := os.ReadFile(filepath.Join(configDir(configFile), "genesis.json"))
	if err != nil {
		return ""
	}
	_ = json.Unmarshal(genesisJson, &genesis)
	p2peers, _ := genesis["p2peers"].(string)
	return p2peers
}

// UpdateGenesisJson records the node's overlay address in genesis.json so
// joiners copying it know whom to dial.
func UpdateGenesisJson(nodeID p2p.ID, v *viper.Viper, configDirectory string) error {
	genesisJsonPath := filepath.Join(configDirectory, "genesis.json")
	file, err := os.ReadFile(genesisJsonPath)
	if err != nil {
		return err
	}

	var dat map[string]any
	if err := json.Unmarshal(file, &dat); err != nil {
		return fmt.Errorf("parse %s: %w", genesisJsonPath, err)
	}
	dat["p2peers"] = selfPeer(nodeID, v)

	out, err := json.MarshalIndent(dat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(genesisJsonPath, out, 0o644)
}

// DirectP2P adapts the overlay oriented [p2p] settings for a node running
// without Yggdrasil. The node listens on the mapped port on all interfaces
// and dials only the peers reachable over plain TCP.
func DirectP2P(config *cfg.Config) error {
	if !strings.Contains(config.P2P.ListenAddress, "://") {
		var remote types.TCPRemoteMappings
		if err := remote.Set(config.P2P.ListenAddress); err != nil {
			return fmt.Errorf("p2p.laddr: %w", err)
		}
		config.P2P.ListenAddress = fmt.Sprintf("tcp://0.0.0.0:%d", remote[0].Mapped.Port)
	}

	entries, err := persistentpeersparser.ParseEntries(config.P2P.PersistentPeers)
	if err != nil {
		return fmt.Errorf("p2p.persistent_peers: %w", err)
	}
	var direct []string
	for _, e := range entries {
		if e.IsOverlay() {
			continue
		}
		direct = append(direct, e.Direct(DefaultP2PPort))
	}
	config.P2P.PersistentPeers = strings.Join(direct, ",")
	return nil
}

// InitGenesis prepares a node that starts a new chain. A fresh operator key
// becomes the platform owner and receives the native supply.
func InitGenesis(chainName, configPath string) (*cfg.Config, *viper.Viper, error) {
	config := DefaultConfig()
	config.SetRoot(rootDir(configPath))

	operatorKeyPath := filepath.Join(configDir(configPath), "operator.key")
	key, err := WriteOperatorKey(operatorKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("operator key: %w", err)
	}
	owner := account.FromPubKey(publicKey(key))

	appState, err := json.Marshal(GenesisAppState(owner))
	if err != nil {
		return nil, nil, err
	}
	if err := InitTendermintFiles(config, true, chainName, appState); err != nil {
		return nil, nil, fmt.Errorf("init files: %w", err)
	}

	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, nil, fmt.Errorf("load node key: %w", err)
	}
	v, err := WriteConfig(config, configPath, nodeKey.ID())
	if err != nil {
		return nil, nil, err
	}
	if err := UpdateGenesisJson(nodeKey.ID(), v, configDir(configPath)); err != nil {
		return nil, nil, fmt.Errorf("update genesis: %w", err)
	}
	return config, v, nil
}

// InitJoiner prepares a node that joins the chain described by the
// genesis.json at genesisPath.
func InitJoiner(chainName, configPath, genesisPath string) (*cfg.Config, *viper.Viper, error) {
	config := DefaultConfig()
	config.SetRoot(rootDir(configPath))

	if err := copyFile(genesisPath, config.GenesisFile()); err != nil {
		return nil, nil, fmt.Errorf("copy genesis.json: %w", err)
	}
	doc, err := tmTypes.GenesisDocFromFile(config.GenesisFile())
	if err != nil {
		return nil, nil, err
	}
	if chainName != "" && doc.ChainID != chainName {
		return nil, nil, fmt.Errorf("genesis is for chain %q, not %q", doc.ChainID, chainName)
	}

	if err := InitTendermintFiles(config, false, chainName, nil); err != nil {
		return nil, nil, fmt.Errorf("init files: %w", err)
	}
	if _, err := WriteOperatorKey(filepath.Join(configDir(configPath), "operator.key")); err != nil {
		return nil, nil, fmt.Errorf("operator key: %w", err)
	}
	v, err := WriteConfig(config, configPath, "")
	if err != nil {
		return nil, nil, err
	}
	return config, v, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
