// Package turnserver runs an embedded STUN/TURN listener so peers behind
// NAT can relay through the same deployment that signals them.
package turnserver

import (
	"fmt"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/config"
)

type Server struct {
	inner *turn.Server
	cfg   config.TURNConfig
}

// Start binds the UDP listener and serves STUN/TURN until Close.
func Start(cfg config.TURNConfig) (*Server, error) {
	udpListener, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("turn listen: %w", err)
	}

	authKey := turn.GenerateAuthKey(cfg.Username, cfg.Realm, cfg.Password)
	s, err := turn.NewServer(turn.ServerConfig{
		Realm: cfg.Realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			if username == cfg.Username {
				return authKey, true
			}
			return nil, false
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: net.ParseIP(cfg.PublicIP),
					Address:      "0.0.0.0",
				},
			},
		},
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		_ = udpListener.Close()
		return nil, fmt.Errorf("turn server: %w", err)
	}

	log.Info().Str("module", "turnserver").Int("port", cfg.Port).Str("realm", cfg.Realm).Msg("TURN server started")
	return &Server{inner: s, cfg: cfg}, nil
}

func (s *Server) Close() error {
	return s.inner.Close()
}

// ICEURLs lists the URLs clients should put in their RTCPeerConnection
// configuration.
func (s *Server) ICEURLs() []string {
	return []string{
		fmt.Sprintf("stun:%s:%d", s.cfg.PublicIP, s.cfg.Port),
		fmt.Sprintf("turn:%s:%d", s.cfg.PublicIP, s.cfg.Port),
	}
}

func (s *Server) Username() string { return s.cfg.Username }
func (s *Server) Password() string { return s.cfg.Password }
