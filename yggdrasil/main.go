package yggdrasil

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/gologme/log"
	"github.com/spf13/viper"

	"github.com/yggdrasil-network/yggdrasil-go/src/admin"
	"github.com/yggdrasil-network/yggdrasil-go/src/core"
	"github.com/yggdrasil-network/yggdrasil-go/src/multicast"
	"github.com/yggdrasil-network/yggstack/src/netstack"
	"github.com/yggdrasil-network/yggstack/src/types"

	"github.com/gregorybednov/bountychain/persistentpeersparser"
)

type node struct {
	core      *core.Core
	multicast *multicast.Multicast
	admin     *admin.AdminSocket
}

// tunnelPeers opens a local listener for every ygg:// peer and forwards
// its connections over the overlay. It returns the persistent peer list
// Tendermint should dial instead; peers on other transports are kept as
// they are.
func tunnelPeers(ctx context.Context, s *netstack.YggdrasilNetstack, mtu uint64, peers []persistentpeersparser.ParsedEntry, defaultPort int, logger *log.Logger) ([]string, error) {
	var out []string
	for _, p := range peers {
		if !p.IsOverlay() {
			out = append(out, p.Direct(defaultPort))
			continue
		}
		port := p.PortOr(defaultPort)

		// port 0: let the OS pick a free one
		listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
		if err != nil {
			return nil, err
		}
		localPort := listener.Addr().(*net.TCPAddr).Port
		out = append(out, fmt.Sprintf("%s@127.0.0.1:%d", p.ID, localPort))

		mapped := net.TCPAddr{IP: net.ParseIP(p.Host()), Port: port}
		go func() {
			<-ctx.Done()
			_ = listener.Close()
		}()
		go func(l *net.TCPListener, mapped net.TCPAddr) {
			logger.Infof("Mapping local TCP port %d to Ygg %s", localPort, mapped.String())
			for {
				c, err := l.Accept()
				if err != nil {
					if ctx.Err() == nil {
						logger.Errorf("Accept on local port %d: %v", localPort, err)
					}
					return
				}
				r, err := s.DialTCP(&mapped)
				if err != nil {
					logger.Errorf("Failed to connect to %s: %s", mapped.String(), err)
					_ = c.Close()
					continue
				}
				go types.ProxyTCP(mtu, c, r)
			}
		}(listener, mapped)
	}
	return out, nil
}

// exposeLocal forwards connections arriving at the overlay port to the
// local P2P listener.
func exposeLocal(ctx context.Context, s *netstack.YggdrasilNetstack, mtu uint64, mapping types.TCPMapping, logger *log.Logger) error {
	listener, err := s.ListenTCP(mapping.Listen)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	go func() {
		logger.Infof("Mapping Yggdrasil TCP port %d to %s", mapping.Listen.Port, mapping.Mapped)
		for {
			c, err := listener.Accept()
			if err != nil {
				if ctx.Err() == nil {
					logger.Errorf("Accept on overlay port %d: %v", mapping.Listen.Port, err)
				}
				return
			}
			r, err := net.DialTCP("tcp", nil, mapping.Mapped)
			if err != nil {
				logger.Errorf("Failed to connect to %s: %s", mapping.Mapped, err)
				_ = c.Close()
				continue
			}
			go types.ProxyTCP(mtu, c, r)
		}
	}()
	return nil
}

// Yggdrasil runs the overlay node until ctx is done. It sends two strings
// on ch: the local address the P2P listener must bind, then the
// persistent peers rewritten to local tunnel ends. ch is closed if the
// node fails before both are sent.
func Yggdrasil(ctx context.Context, config *viper.Viper, ch chan<- string, logger *log.Logger) error {
	handed := false
	defer func() {
		if !handed {
			close(ch)
		}
	}()

	settings, err := LoadSettings(config)
	if err != nil {
		return err
	}
	p2p := config.Sub("p2p")
	if p2p == nil {
		return fmt.Errorf("no [p2p] section in config")
	}

	var remoteTcp types.TCPRemoteMappings
	if err := remoteTcp.Set(p2p.GetString("laddr")); err != nil {
		return fmt.Errorf("p2p.laddr: %w", err)
	}
	ch <- remoteTcp[0].Mapped.String()

	parsed, err := persistentpeersparser.ParseEntries(p2p.GetString("persistent_peers"))
	if err != nil {
		logger.Warnf("Persistent peers ignored: %v", err)
		parsed = nil
	}

	cfg, err := settings.nodeConfig(logger)
	if err != nil {
		return err
	}
	logger.Infof("Yggdrasil peers: %s", cfg.Peers)

	n := &node{}
	if n.core, err = newCore(cfg, logger); err != nil {
		return err
	}
	defer n.core.Stop()
	publicstr := hex.EncodeToString(n.core.PublicKey())
	logger.Infof("Your public key is %s", publicstr)
	logger.Infof("Your IPv6 address is %s", n.core.Address().String())
	logger.Infof("Your Yggstack resolver name is %s%s", publicstr, types.NameMappingSuffix)

	if n.admin, err = admin.New(n.core, logger, admin.ListenAddress(cfg.AdminListen)); err != nil {
		return err
	}
	if n.admin != nil {
		n.admin.SetupAdminHandlers()
		defer n.admin.Stop()
	}

	if n.multicast, err = multicast.New(n.core, logger); err != nil {
		return err
	}
	if n.admin != nil && n.multicast != nil {
		n.multicast.SetupAdminHandlers(n.admin)
	}
	defer n.multicast.Stop()

	s, err := netstack.CreateYggdrasilNetstack(n.core)
	if err != nil {
		return err
	}
	mtu := n.core.MTU()

	peers, err := tunnelPeers(ctx, s, mtu, parsed, settings.ListenPort, logger)
	if err != nil {
		return err
	}
	ch <- strings.Join(peers, ",")
	handed = true

	for _, mapping := range remoteTcp {
		if err := exposeLocal(ctx, s, mtu, mapping, logger); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Infoln("Stopping Yggdrasil")
	return nil
}
