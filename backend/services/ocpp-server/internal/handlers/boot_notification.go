package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// HeartbeatInterval is the interval, in seconds, every charge point is told to use.
const HeartbeatInterval = 10

// NewBootNotificationHandler accepts every charge point.
func NewBootNotificationHandler(state *service.StationState, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.BootNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		current := now()
		serial := req.ChargePointSerialNumber
		if serial == "" {
			serial = req.ChargeBoxSerialNumber
		}
		state.RecordBoot(stationID, service.BootInfo{
			Vendor:          req.ChargePointVendor,
			Model:           req.ChargePointModel,
			SerialNumber:    serial,
			FirmwareVersion: req.FirmwareVersion,
		}, current)

		logger.Info("charge point booted",
			zap.String("charge_point_id", stationID),
			zap.String("vendor", req.ChargePointVendor),
			zap.String("model", req.ChargePointModel),
			zap.String("firmware", req.FirmwareVersion))

		return protocol.BootNotificationResponse{
			CurrentTime: protocol.NewDateTime(current),
			Interval:    HeartbeatInterval,
			Status:      protocol.RegistrationAccepted,
		}, nil
	}
}
