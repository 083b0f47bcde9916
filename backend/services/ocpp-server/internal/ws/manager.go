package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/metrics"
)

// SessionInfo describes one active connection.
type SessionInfo struct {
	ChargePointID  string    `json:"chargePointId"`
	Subprotocol    string    `json:"subprotocol"`
	State          string    `json:"state"`
	RemoteAddr     string    `json:"remoteAddr"`
	ConnectedAt    time.Time `json:"connectedAt"`
	PendingCalls   int       `json:"pendingCalls"`
	Limit          float64   `json:"limit,omitempty"`
	LimitAppliedAt time.Time `json:"limitAppliedAt"`
}

// Manager tracks charge point connections.
type Manager struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewManager builds connection manager.
func NewManager(pingInterval time.Duration, logger *zap.Logger) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers new connection. An older connection with the same id is closed.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	previous := m.connections[conn.ChargePointID()]
	m.connections[conn.ChargePointID()] = conn
	count := len(m.connections)
	m.mu.Unlock()

	metrics.ObserveSessions(count)
	if previous != nil && previous != conn {
		m.logger.Info("replacing existing connection", zap.String("charge_point_id", conn.ChargePointID()))
		previous.Close(websocket.ClosePolicyViolation, "replaced by a new connection")
	}
}

// Remove removes connection if it is still the registered one for its id.
func (m *Manager) Remove(conn *Connection) {
	m.mu.Lock()
	removed := false
	if current, ok := m.connections[conn.ChargePointID()]; ok && current == conn {
		delete(m.connections, conn.ChargePointID())
		removed = true
	}
	count := len(m.connections)
	m.mu.Unlock()

	metrics.ObserveSessions(count)
	if removed {
		metrics.ForgetLimit(conn.ChargePointID())
	}
}

// Get returns the active connection of a charge point.
func (m *Manager) Get(chargePointID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[chargePointID]
	return conn, ok
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Snapshot describes every registered connection, sorted by charge point id.
func (m *Manager) Snapshot() []SessionInfo {
	conns := m.list()

	infos := make([]SessionInfo, 0, len(conns))
	for _, conn := range conns {
		info := SessionInfo{
			ChargePointID: conn.ChargePointID(),
			Subprotocol:   conn.Subprotocol(),
			State:         conn.State().String(),
			RemoteAddr:    conn.ws.RemoteAddr().String(),
			ConnectedAt:   conn.connectedAt,
			PendingCalls:  conn.PendingCalls(),
		}
		if controller := conn.Controller(); controller != nil {
			info.Limit = controller.LastCap()
			info.LimitAppliedAt = controller.LastApplied()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ChargePointID < infos[j].ChargePointID })
	return infos
}

// CloseAll closes every connection with code 1001.
func (m *Manager) CloseAll() {
	conns := m.list()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// Start begins ping loop to keep connections active. It closes every
// connection when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			for _, conn := range m.list() {
				if err := conn.Ping(); err != nil {
					m.logger.Debug("ping failed", zap.String("charge_point_id", conn.ChargePointID()), zap.Error(err))
				}
			}
		}
	}
}

func (m *Manager) list() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	return conns
}
