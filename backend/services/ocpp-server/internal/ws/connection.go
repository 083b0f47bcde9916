package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/metrics"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/schema"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/smartcharging"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateActive:
		return "Active"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrNotActive is returned for outbound calls on a connection that is not Active.
var ErrNotActive = errors.New("ws: connection is not active")

const maxMessageSize = 1024 * 1024

// Dispatcher answers inbound calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, chargePointID string, call *ocpp.Message) *ocpp.Message
}

// Options tune a connection. Zero values fall back to defaults.
type Options struct {
	Version      string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	CallTimeout  time.Duration
	TickInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 15 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = smartcharging.DefaultTickInterval
	}
	return o
}

// Connection is the session of one charge point. The read pump handles inbound
// frames in arrival order; only the write pump writes data frames.
type Connection struct {
	chargePointID string
	ws            *websocket.Conn
	dispatcher    Dispatcher
	validator     *schema.Validator
	frameLog      ocpp.FrameLog
	opts          Options
	logger        *zap.Logger
	onClose       func(*Connection)
	connectedAt   time.Time

	pending    *ocpp.PendingCalls
	send       chan []byte
	controller *smartcharging.Controller

	state     atomic.Int32
	closing   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConnection builds connection wrapper in the Connecting state.
func NewConnection(chargePointID string, conn *websocket.Conn, dispatcher Dispatcher, validator *schema.Validator, frameLog ocpp.FrameLog, opts Options, logger *zap.Logger, onClose func(*Connection)) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		chargePointID: chargePointID,
		ws:            conn,
		dispatcher:    dispatcher,
		validator:     validator,
		frameLog:      frameLog,
		opts:          opts.withDefaults(),
		logger:        logger.With(zap.String("charge_point_id", chargePointID)),
		onClose:       onClose,
		connectedAt:   time.Now().UTC(),
		pending:       ocpp.NewPendingCalls(),
		send:          make(chan []byte, 16),
		closing:       make(chan struct{}),
		closed:        make(chan struct{}),
	}
}

// ChargePointID returns identifier.
func (c *Connection) ChargePointID() string {
	return c.chargePointID
}

// Subprotocol returns the negotiated subprotocol.
func (c *Connection) Subprotocol() string {
	return c.ws.Subprotocol()
}

// State returns the current lifecycle stage.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Controller returns the smart charging controller, nil when disabled.
func (c *Connection) Controller() *smartcharging.Controller {
	return c.controller
}

// Closed is closed once the connection reached StateClosed.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// Start runs the connection until the transport fails, Close is called or ctx
// is done. It blocks in the read pump.
func (c *Connection) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.state.Store(int32(StateActive))
	c.logger.Info("charge point connected", zap.String("subprotocol", c.Subprotocol()))

	go c.writePump()
	go func() {
		select {
		case <-ctx.Done():
			c.Close(websocket.CloseGoingAway, "server shutting down")
		case <-c.closing:
		}
	}()
	if c.controller != nil {
		go c.controller.Run(ctx, c.opts.TickInterval)
	}

	c.readPump(ctx)
	c.cleanup()
}

func (c *Connection) readPump(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})
	c.ws.SetPingHandler(func(data string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		err := c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.opts.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection read failed", zap.Error(err))
			} else {
				c.logger.Info("connection read closed", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		if messageType != websocket.TextMessage {
			c.logger.Warn("ignoring non-text frame", zap.Int("message_type", messageType))
			continue
		}
		c.logger.Debug("frame received", zap.ByteString("frame", data))

		msg, err := ocpp.Decode(data)
		if err != nil {
			metrics.CountFrame(metrics.Inbound, "invalid")
			c.logger.Warn("discarding malformed frame", zap.Error(err), zap.ByteString("frame", data))
			continue
		}
		metrics.CountFrame(metrics.Inbound, msg.Type.String())

		switch msg.Type {
		case ocpp.MessageTypeCall:
			c.handleCall(ctx, msg)
		case ocpp.MessageTypeCallResult, ocpp.MessageTypeCallError:
			call, ok := c.pending.Resolve(msg)
			if !ok {
				c.logger.Warn("discarding response without pending call",
					zap.String("unique_id", msg.UniqueID),
					zap.String("message_type", msg.Type.String()))
				continue
			}
			c.logger.Debug("response matched", zap.String("unique_id", call.ID), zap.String("action", call.Action))
		}
	}
}

func (c *Connection) handleCall(ctx context.Context, call *ocpp.Message) {
	response := c.dispatcher.Dispatch(ctx, c.chargePointID, call)
	data, err := ocpp.Encode(response)
	if err != nil {
		c.logger.Error("encode response failed", zap.String("unique_id", call.UniqueID), zap.Error(err))
		data, err = ocpp.Encode(ocpp.NewCallError(call.UniqueID, ocpp.ErrorCodeInternalError, "response encoding failed"))
		if err != nil {
			return
		}
	}
	if err := c.enqueue(data); err != nil {
		c.logger.Info("response not sent", zap.String("unique_id", call.UniqueID), zap.Error(err))
		return
	}
	metrics.CountFrame(metrics.Outbound, response.Type.String())
}

// Call sends an outbound call and waits for its response payload. The payload is
// validated before sending and the response after receipt. It fails with
// ocpp.ErrTimeout, ocpp.ErrConnectionLost, a *ocpp.CallError or a schema error.
func (c *Connection) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	if c.State() != StateActive {
		return nil, ErrNotActive
	}

	body, err := ocpp.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	if c.validator != nil {
		if err := c.validator.Validate(action, body, c.opts.Version, schema.Request); err != nil {
			return nil, err
		}
	}

	pending, err := c.pending.Register(action)
	if err != nil {
		return nil, err
	}
	data, err := ocpp.Encode(&ocpp.Message{Type: ocpp.MessageTypeCall, UniqueID: pending.ID, Action: action, Payload: body})
	if err != nil {
		c.pending.Fail(pending.ID, err)
		return nil, err
	}

	logger := c.logger.With(zap.String("unique_id", pending.ID), zap.String("action", action))
	if c.frameLog != nil {
		if err := c.frameLog.Save(ctx, c.chargePointID, ocpp.DirectionOutgoing, action, body); err != nil {
			logger.Warn("save ocpp frame failed", zap.Error(err))
		}
	}
	if err := c.enqueue(data); err != nil {
		c.pending.Fail(pending.ID, err)
	} else {
		metrics.CountFrame(metrics.Outbound, ocpp.MessageTypeCall.String())
		logger.Debug("call sent")
	}

	timer := time.NewTimer(c.opts.CallTimeout)
	defer timer.Stop()

	var outcome ocpp.CallOutcome
	select {
	case outcome = <-pending.Done():
	case <-timer.C:
		c.pending.Fail(pending.ID, ocpp.ErrTimeout)
		outcome = <-pending.Done()
	case <-ctx.Done():
		c.pending.Fail(pending.ID, ctx.Err())
		outcome = <-pending.Done()
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}

	if c.validator != nil {
		if err := c.validator.Validate(action, outcome.Payload, c.opts.Version, schema.Response); err != nil {
			return nil, err
		}
	}
	if c.frameLog != nil {
		if err := c.frameLog.Save(ctx, c.chargePointID, ocpp.DirectionIncoming, action, outcome.Payload); err != nil {
			logger.Warn("save ocpp frame failed", zap.Error(err))
		}
	}
	return outcome.Payload, nil
}

// PendingCalls returns the number of outbound calls awaiting a response.
func (c *Connection) PendingCalls() int {
	return c.pending.Len()
}

func (c *Connection) enqueue(data []byte) error {
	select {
	case <-c.closing:
		return ocpp.ErrConnectionLost
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closing:
		return ocpp.ErrConnectionLost
	}
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.closing:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("connection write failed", zap.Error(err))
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
			c.logger.Debug("frame sent", zap.ByteString("frame", data))
		}
	}
}

// Ping sends a ping control frame; safe to call from any goroutine.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.opts.WriteTimeout))
}

// Close moves the connection to Closing, sends a close frame with code and
// reason when code is a sendable close code, and closes the transport. The
// read pump then finishes the teardown.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.closing)
		if code != websocket.CloseAbnormalClosure && code != websocket.CloseNoStatusReceived {
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.opts.WriteTimeout))
		}
		_ = c.ws.Close()
	})
}

func (c *Connection) cleanup() {
	c.Close(websocket.CloseAbnormalClosure, "")
	if failed := c.pending.Close(ocpp.ErrConnectionLost); failed > 0 {
		c.logger.Info("failed pending calls on disconnect", zap.Int("count", failed))
	}
	c.state.Store(int32(StateClosed))
	if c.onClose != nil {
		c.onClose(c)
	}
	close(c.closed)
	c.logger.Info("charge point disconnected")
}
