package handlers

import (
	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// RegisterAll binds every charge-point-initiated action the server answers.
func RegisterAll(router *ocpp.Router, state *service.StationState, logger *zap.Logger) {
	router.Register(protocol.ActionBootNotification, NewBootNotificationHandler(state, logger))
	router.Register(protocol.ActionHeartbeat, NewHeartbeatHandler(state))
	router.Register(protocol.ActionStatusNotification, NewStatusNotificationHandler(state, logger))
	router.Register(protocol.ActionMeterValues, NewMeterValuesHandler(state, logger))
	router.Register(protocol.ActionAuthorize, NewAuthorizeHandler(state))
	router.Register(protocol.ActionStartTransaction, NewStartTransactionHandler(state, logger))
}
