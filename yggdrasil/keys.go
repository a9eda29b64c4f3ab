package yggdrasil

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yggdrasil-network/yggdrasil-go/src/address"
	yggConfig "github.com/yggdrasil-network/yggdrasil-go/src/config"
)

func GeneratePrivateKey() yggConfig.KeyBytes {
	return yggConfig.GenerateConfig().PrivateKey
}

// WritePrivateKey stores a fresh hex encoded key at path unless a key is
// already there.
func WritePrivateKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	key := GeneratePrivateKey()
	return os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600)
}

func LoadPrivateKey(keyPath string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: %d", len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}

func GetPublicKey(keyPath string) (ed25519.PublicKey, error) {
	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return key.Public().(ed25519.PublicKey), nil
}

// AddressForKey returns the overlay IPv6 address owned by pub.
func AddressForKey(pub ed25519.PublicKey) string {
	return net.IP(address.AddrForKey(pub)[:]).String()
}

// GetYggdrasilAddress returns the overlay address of the node configured
// in v, or "" when there is no [yggdrasil] section or no usable key.
func GetYggdrasilAddress(config *viper.Viper) string {
	s, err := LoadSettings(config)
	if err != nil {
		return ""
	}
	pub, err := GetPublicKey(s.PrivateKeyFile)
	if err != nil {
		return ""
	}
	return AddressForKey(pub)
}
