package yggdrasil

import (
	"context"
	"io/fs"
	"math/rand"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/gologme/log"
)

type Peer struct {
	URL     url.URL
	Online  bool
	Latency time.Duration
}

const repoURL = "https://github.com/yggdrasil-network/public-peers"
const localPeersPath = "peers.txt"

var peerRe = regexp.MustCompile(`(?m)(tcp|tls)://[^\s` + "`" + `]+`)

// extractPeers returns every tcp:// and tls:// URI found in data.
func extractPeers(data string) []url.URL {
	var peers []url.URL
	for _, m := range peerRe.FindAllString(data, -1) {
		u, err := url.Parse(strings.TrimSpace(m))
		if err != nil || u.Host == "" {
			continue
		}
		peers = append(peers, *u)
	}
	return peers
}

func readPeersFile(path string) []url.URL {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var peers []url.URL
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			continue
		}
		peers = append(peers, *u)
	}
	return peers
}

// getPublicPeers clones the public-peers repository and collects the peer
// URIs listed there. It falls back to peers.txt in the working directory.
func getPublicPeers(logger *log.Logger) []url.URL {
	tempDir, err := os.MkdirTemp("", "public-peers-*")
	if err != nil {
		return readPeersFile(localPeersPath)
	}
	defer os.RemoveAll(tempDir)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{URL: repoURL, Depth: 1})
	if err != nil {
		logger.Warnf("Clone %s: %v, falling back to %s", repoURL, err, localPeersPath)
		return readPeersFile(localPeersPath)
	}

	var peers []url.URL
	_ = filepath.WalkDir(tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("walk error: %v", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") || d.Name() == "README.md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		peers = append(peers, extractPeers(string(data))...)
		return nil
	})

	if len(peers) == 0 {
		return readPeersFile(localPeersPath)
	}
	return peers
}

// DiscoverPeers picks pick random peers among the closest online public
// peers.
func DiscoverPeers(logger *log.Logger, closest, pick int) []url.URL {
	peers := RandomPick(GetClosestPeers(getPublicPeers(logger), closest), pick)
	if len(peers) == 0 {
		logger.Warnln("No public Yggdrasil peers reachable")
	}
	return peers
}

// Get n online peers with best latency from a peer list
func GetClosestPeers(peerList []url.URL, n int) []url.URL {
	var result []url.URL
	onlinePeers := testPeers(peerList)

	x := 0
	for _, p := range onlinePeers {
		if p.Online {
			onlinePeers[x] = p
			x++
		}
	}
	onlinePeers = onlinePeers[:x]

	sort.Slice(onlinePeers, func(i, j int) bool {
		return onlinePeers[i].Latency < onlinePeers[j].Latency
	})

	for i := 0; i < len(onlinePeers) && len(result) < n; i++ {
		result = append(result, onlinePeers[i].URL)
	}
	return result
}

// Pick n random peers from a list
func RandomPick(peerList []url.URL, n int) []url.URL {
	if len(peerList) <= n {
		return peerList
	}

	var res []url.URL
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, i := range r.Perm(len(peerList))[:n] {
		res = append(res, peerList[i])
	}
	return res
}

const defaultTimeout = 3 * time.Second

func testPeers(peers []url.URL) []Peer {
	var res []Peer
	results := make(chan Peer)

	for _, p := range peers {
		go testPeer(p, results)
	}
	for range peers {
		res = append(res, <-results)
	}
	return res
}

func testPeer(peer url.URL, results chan Peer) {
	p := Peer{URL: peer}
	if peer.Scheme != "tcp" && peer.Scheme != "tls" {
		// not supported yet
		results <- p
		return
	}

	t0 := time.Now()
	conn, err := net.DialTimeout("tcp", peer.Host, defaultTimeout)
	if err == nil {
		p.Latency = time.Since(t0)
		conn.Close()
		p.Online = true
	}
	results <- p
}
