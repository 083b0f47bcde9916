package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// NewStatusNotificationHandler updates station/connector status.
func NewStatusNotificationHandler(state *service.StationState, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		at := now()
		if req.Timestamp != nil && !req.Timestamp.IsZero() {
			at = req.Timestamp.UTC()
		}
		state.UpdateStatus(stationID, req.ConnectorID, req.Status, req.ErrorCode, at)

		logger.Info("status notification",
			zap.String("charge_point_id", stationID),
			zap.Int("connector_id", req.ConnectorID),
			zap.String("status", req.Status),
			zap.String("error_code", req.ErrorCode))

		return protocol.StatusNotificationResponse{}, nil
	}
}
