// Package persistentpeersparser reads the p2p.persistent_peers setting of a
// bounty node. Besides Tendermint's plain id@host:port entries the setting
// may carry id@ygg://[addr]:port entries for peers only reachable over the
// Yggdrasil overlay. The overlay runner tunnels every ygg:// entry through a
// local port before Tendermint sees the list, and a node started without the
// overlay drops those entries and keeps the rest.
package persistentpeersparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ProtoYgg marks a peer reached through the Yggdrasil overlay.
const ProtoYgg = "ygg"

// ParsedEntry is one id@[proto://]address[:port] persistent peer.
type ParsedEntry struct {
	ID      string
	Proto   string // ProtoYgg for overlay peers, empty for plain TCP
	Address string // IPv6 addresses keep their brackets
	Port    *int   // nil when omitted
}

// IsOverlay reports whether the peer is only reachable over Yggdrasil.
func (e ParsedEntry) IsOverlay() bool {
	return e.Proto == ProtoYgg
}

// Host is Address without IPv6 brackets, ready for net.ParseIP.
func (e ParsedEntry) Host() string {
	return strings.TrimSuffix(strings.TrimPrefix(e.Address, "["), "]")
}

// PortOr returns the entry's port, or def when it has none.
func (e ParsedEntry) PortOr(def int) int {
	if e.Port == nil {
		return def
	}
	return *e.Port
}

// Direct formats the entry the way Tendermint dials plain TCP peers.
func (e ParsedEntry) Direct(defaultPort int) string {
	return fmt.Sprintf("%s@%s:%d", e.ID, e.Address, e.PortOr(defaultPort))
}

// id, optional scheme, bracketed or plain host, optional port
var entryPattern = regexp.MustCompile(`^([a-fA-F0-9]+)@(?:([a-zA-Z]+)://)?(\[[^\]]+\]|[^:\[\]]+)(?::(\d+))?$`)

// ParseEntries parses a comma separated peer list. Blank entries are
// skipped; a malformed entry fails the whole list.
func ParseEntries(input string) ([]ParsedEntry, error) {
	var result []ParsedEntry
	for _, entry := range strings.Split(input, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		e, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func parseEntry(entry string) (ParsedEntry, error) {
	m := entryPattern.FindStringSubmatch(entry)
	if m == nil {
		return ParsedEntry{}, fmt.Errorf("invalid entry: %s", entry)
	}
	e := ParsedEntry{ID: m[1], Proto: strings.ToLower(m[2]), Address: m[3]}
	if m[4] != "" {
		p, err := strconv.Atoi(m[4])
		if err != nil || p > 65535 {
			return ParsedEntry{}, fmt.Errorf("invalid port in entry: %s", entry)
		}
		e.Port = &p
	}
	return e, nil
}
