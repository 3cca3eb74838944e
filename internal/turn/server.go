// Package turn runs an optional TURN server next to the relay for peers
// whose direct path fails.
package turn

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pion/turn/v4"
	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/logging"
)

type Options struct {
	ListenAddr string
	Realm      string

	// PublicIP is advertised in relayed candidates. Empty means the address
	// of the interface used for outbound traffic.
	PublicIP string

	// Users maps long-term credential user names to passwords.
	Users map[string]string
}

type Server struct {
	server *turn.Server
	addr   net.Addr
	once   sync.Once
}

func NewServer(opts Options) (*Server, error) {
	if len(opts.Users) == 0 {
		return nil, errors.New("turn: no users configured")
	}

	publicIP := opts.PublicIP
	if publicIP == "" {
		ip, err := outboundIP()
		if err != nil {
			return nil, fmt.Errorf("failed to get public IP: %w", err)
		}
		publicIP = ip
	}
	relayIP := net.ParseIP(publicIP)
	if relayIP == nil {
		return nil, fmt.Errorf("turn: invalid public ip %q", publicIP)
	}

	// Keys are derived once; the password itself never reaches the handler.
	keys := make(map[string][]byte, len(opts.Users))
	for user, pass := range opts.Users {
		keys[user] = turn.GenerateAuthKey(user, opts.Realm, pass)
	}

	udpListener, err := net.ListenPacket("udp4", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create TURN listener: %w", err)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm:         opts.Realm,
		LoggerFactory: logging.PionFactory{},
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			key, ok := keys[username]
			if !ok {
				log.Debug().Str("user", username).Str("remote", srcAddr.String()).Msg("TURN auth rejected")
			}
			return key, ok
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		udpListener.Close()
		return nil, fmt.Errorf("failed to create TURN server: %w", err)
	}

	log.Info().Str("addr", udpListener.LocalAddr().String()).Str("realm", opts.Realm).Msg("TURN server running")
	return &Server{server: server, addr: udpListener.LocalAddr()}, nil
}

// Addr is the bound UDP address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		err = s.server.Close()
		log.Info().Msg("TURN server stopped")
	})
	return err
}

func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
