package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/metrics"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/schema"
)

// HandlerFunc processes a validated payload and returns the response body.
// Handlers must not block on network I/O.
type HandlerFunc func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error)

// FrameLog records exchanged payloads. Failures never affect the exchange.
type FrameLog interface {
	Save(ctx context.Context, chargePointID, direction, action string, payload []byte) error
}

// Frame log directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Router dispatches inbound calls to handlers. Register every handler before the
// server starts accepting connections; the handler map is read-only afterwards.
type Router struct {
	handlers  map[string]HandlerFunc
	validator *schema.Validator
	version   string
	frameLog  FrameLog
	logger    *zap.Logger
}

// NewRouter returns a router validating against version's schemas. frameLog may be nil.
func NewRouter(validator *schema.Validator, version string, frameLog FrameLog, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers:  make(map[string]HandlerFunc),
		validator: validator,
		version:   version,
		frameLog:  frameLog,
		logger:    logger,
	}
}

// Register attaches handler to action.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Actions lists registered actions.
func (r *Router) Actions() []string {
	actions := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Dispatch answers call with a CallResult or a CallError. It never returns nil.
func (r *Router) Dispatch(ctx context.Context, chargePointID string, call *Message) *Message {
	logger := r.logger.With(
		zap.String("charge_point_id", chargePointID),
		zap.String("unique_id", call.UniqueID),
		zap.String("action", call.Action),
	)
	r.saveFrame(ctx, logger, chargePointID, DirectionIncoming, call.Action, call.Payload)

	response := r.dispatch(ctx, logger, chargePointID, call)
	if response.Type == MessageTypeCallError {
		metrics.CountCallError(string(response.ErrorCode))
		logger.Warn("answering call with error",
			zap.String("error_code", string(response.ErrorCode)),
			zap.String("description", response.ErrorDescription))
		body, _ := json.Marshal(map[string]string{
			"errorCode":        string(response.ErrorCode),
			"errorDescription": response.ErrorDescription,
		})
		r.saveFrame(ctx, logger, chargePointID, DirectionOutgoing, call.Action, body)
	} else {
		r.saveFrame(ctx, logger, chargePointID, DirectionOutgoing, call.Action, response.Payload)
	}
	return response
}

func (r *Router) dispatch(ctx context.Context, logger *zap.Logger, chargePointID string, call *Message) *Message {
	handler, ok := r.handlers[call.Action]
	if !ok {
		return NewCallError(call.UniqueID, ErrorCodeNotImplemented, fmt.Sprintf("action %s is not implemented", call.Action))
	}

	if r.validator != nil {
		if err := r.validator.Validate(call.Action, call.Payload, r.version, schema.Request); err != nil {
			if errors.Is(err, schema.ErrUnknownAction) {
				return NewCallError(call.UniqueID, ErrorCodeNotImplemented, fmt.Sprintf("action %s is not implemented", call.Action))
			}
			return NewCallError(call.UniqueID, ErrorCodeFormationViolation, err.Error())
		}
	}

	body, err := invoke(ctx, handler, chargePointID, call.Payload)
	if err != nil {
		logger.Error("ocpp handler failed", zap.Error(err))
		return NewCallError(call.UniqueID, ErrorCodeInternalError, err.Error())
	}

	response, err := NewCallResult(call.UniqueID, body)
	if err != nil {
		logger.Error("encode handler response", zap.Error(err))
		return NewCallError(call.UniqueID, ErrorCodeInternalError, err.Error())
	}

	if r.validator != nil {
		if err := r.validator.Validate(call.Action, response.Payload, r.version, schema.Response); err != nil {
			logger.Error("handler response violates schema", zap.Error(err))
			return NewCallError(call.UniqueID, ErrorCodeInternalError, "response failed validation")
		}
	}
	return response
}

func invoke(ctx context.Context, handler HandlerFunc, chargePointID string, payload json.RawMessage) (body interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			body = nil
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return handler(ctx, chargePointID, payload)
}

func (r *Router) saveFrame(ctx context.Context, logger *zap.Logger, chargePointID, direction, action string, payload []byte) {
	if r.frameLog == nil {
		return
	}
	if err := r.frameLog.Save(ctx, chargePointID, direction, action, payload); err != nil {
		logger.Warn("save ocpp frame failed", zap.String("direction", direction), zap.Error(err))
	}
}
