package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// NewMeterValuesHandler acknowledges meter samples and logs them at debug level.
func NewMeterValuesHandler(state *service.StationState, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.MeterValuesRequest](payload)
		if err != nil {
			return nil, err
		}

		state.RecordMeterValues(stationID, now())

		if ce := logger.Check(zap.DebugLevel, "meter values"); ce != nil {
			for _, mv := range req.MeterValue {
				for _, sv := range mv.SampledValue {
					ce.Write(
						zap.String("charge_point_id", stationID),
						zap.Int("connector_id", req.ConnectorID),
						zap.Time("timestamp", mv.Timestamp.Time),
						zap.String("measurand", sv.Measurand),
						zap.String("value", sv.Value),
						zap.String("unit", sv.Unit))
				}
			}
		}

		return protocol.MeterValuesResponse{}, nil
	}
}
