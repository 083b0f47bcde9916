package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/schema"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/smartcharging"
)

// ControllerFactory builds the smart charging controller of a new connection.
type ControllerFactory func(chargePointID string, caller smartcharging.Caller) *smartcharging.Controller

// Server upgrades HTTP connections to WebSockets for OCPP.
type Server struct {
	manager     *Manager
	dispatcher  Dispatcher
	validator   *schema.Validator
	frameLog    ocpp.FrameLog
	controllers ControllerFactory
	auth        *BasicAuth
	opts        Options
	logger      *zap.Logger
	baseCtx     context.Context
	upgrader    websocket.Upgrader
}

// ServerConfig groups the collaborators of Server. Only Manager and Dispatcher are required.
type ServerConfig struct {
	Manager     *Manager
	Dispatcher  Dispatcher
	Validator   *schema.Validator
	FrameLog    ocpp.FrameLog
	Controllers ControllerFactory
	Auth        *BasicAuth
	Options     Options
}

// NewServer builds ws server. Sessions end when ctx is done.
func NewServer(ctx context.Context, cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := cfg.Options
	if opts.Version == "" {
		opts.Version = protocol.Version16
	}
	return &Server{
		manager:     cfg.Manager,
		dispatcher:  cfg.Dispatcher,
		validator:   cfg.Validator,
		frameLog:    cfg.FrameLog,
		controllers: cfg.Controllers,
		auth:        cfg.Auth,
		opts:        opts,
		logger:      logger,
		baseCtx:     ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{protocol.Subprotocol16},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ChargePointID derives the charge point id from the request path.
func ChargePointID(r *http.Request) string {
	return strings.Trim(r.URL.Path, "/")
}

// ServeHTTP accepts a charge point on any path; the path is its id.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chargePointID := ChargePointID(r)
	logger := s.logger.With(zap.String("charge_point_id", chargePointID), zap.String("remote_addr", r.RemoteAddr))

	if !s.auth.Allow(r, chargePointID) {
		logger.Warn("charge point authentication failed")
		w.Header().Set("WWW-Authenticate", `Basic realm="ocpp"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	requested := websocket.Subprotocols(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	if conn.Subprotocol() != protocol.Subprotocol16 {
		if len(requested) == 0 {
			logger.Warn("client hasn't requested any subprotocol, closing connection")
		} else {
			logger.Warn("protocols mismatched",
				zap.Strings("requested", requested),
				zap.String("available", protocol.Subprotocol16))
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "unsupported subprotocol"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	connection := NewConnection(chargePointID, conn, s.dispatcher, s.validator, s.frameLog, s.opts, s.logger, s.manager.Remove)
	if s.controllers != nil {
		connection.controller = s.controllers(chargePointID, connection)
	}
	s.manager.Add(connection)

	go connection.Start(s.baseCtx)
}
