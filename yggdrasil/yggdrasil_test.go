package yggdrasil

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urls(t *testing.T, raw ...string) []url.URL {
	var out []url.URL
	for _, r := range raw {
		u, err := url.Parse(r)
		require.NoError(t, err)
		out = append(out, *u)
	}
	return out
}

func TestRandomPick(t *testing.T) {
	peers := urls(t, "tcp://a:1", "tcp://b:2", "tcp://c:3", "tcp://d:4")
	assert.Equal(t, peers, RandomPick(peers, 4))
	assert.Equal(t, peers, RandomPick(peers, 10))

	picked := RandomPick(peers, 2)
	require.Len(t, picked, 2)
	assert.NotEqual(t, picked[0], picked[1])
	for _, p := range picked {
		assert.Contains(t, peers, p)
	}
}

func TestExtractPeers(t *testing.T) {
	md := "* Host\n  * `tcp://1.2.3.4:5678`\n  * `tls://[2001:db8::1]:443?key=ab`\n  * `quic://x:1`\n  * tcp://\n"
	got := extractPeers(md)
	require.Len(t, got, 2)
	assert.Equal(t, "1.2.3.4:5678", got[0].Host)
	assert.Equal(t, "tls", got[1].Scheme)
}

func TestReadPeersFile(t *testing.T) {
	assert.Nil(t, readPeersFile(filepath.Join(t.TempDir(), "missing")))

	path := filepath.Join(t.TempDir(), "peers.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\ntcp://1.2.3.4:1\n\n%zz\ntls://h:2\n"), 0644))
	got := readPeersFile(path)
	require.Len(t, got, 2)
	assert.Equal(t, "h:2", got[1].Host)
}

func TestGetClosestPeers(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	// a closed listener leaves a port nobody answers on
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	dead.Close()

	peers := urls(t, "tcp://"+l.Addr().String(), "tcp://"+deadAddr, "quic://"+l.Addr().String())
	got := GetClosestPeers(peers, 5)
	require.Len(t, got, 1)
	assert.Equal(t, l.Addr().String(), got[0].Host)
}

func writeKey(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "ygg.key")
	require.NoError(t, WritePrivateKey(path))
	return path
}

func TestKeysAndAddress(t *testing.T) {
	path := writeKey(t)
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, WritePrivateKey(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "an existing key is kept")

	pub, err := GetPublicKey(path)
	require.NoError(t, err)
	addr := AddressForKey(pub)
	assert.True(t, strings.HasPrefix(addr, "2"), addr)
	assert.NotNil(t, net.ParseIP(addr))

	v := viper.New()
	v.Set("yggdrasil", map[string]any{"private_key_file": path})
	assert.Equal(t, addr, GetYggdrasilAddress(v))
	assert.Empty(t, GetYggdrasilAddress(viper.New()))
}

func TestLoadSettings(t *testing.T) {
	_, err := LoadSettings(viper.New())
	assert.Error(t, err)

	v := viper.New()
	v.Set("yggdrasil", map[string]any{"peers": "auto"})
	_, err = LoadSettings(v)
	assert.Error(t, err, "private key file is required")

	path := writeKey(t)
	v.Set("yggdrasil", map[string]any{
		"admin_listen":     "none",
		"peers":            []string{"tls://1.2.3.4:443"},
		"private_key_file": path,
	})
	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultListenPort, s.ListenPort)
	assert.Equal(t, []string{"tls://1.2.3.4:443"}, s.Peers)

	cfg, err := s.nodeConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tls://1.2.3.4:443"}, cfg.Peers)
	assert.NotNil(t, cfg.Certificate)
}
