package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// PlaceholderTransactionID is returned for every transaction; transactions are not tracked.
const PlaceholderTransactionID = 1

// NewStartTransactionHandler accepts every transaction.
func NewStartTransactionHandler(state *service.StationState, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StartTransactionRequest](payload)
		if err != nil {
			return nil, err
		}
		state.RecordTransaction(stationID, req.IdTag)

		logger.Info("transaction started",
			zap.String("charge_point_id", stationID),
			zap.Int("connector_id", req.ConnectorID),
			zap.String("id_tag", req.IdTag),
			zap.Int("meter_start", req.MeterStart))

		return protocol.StartTransactionResponse{
			IdTagInfo:     protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
			TransactionID: PlaceholderTransactionID,
		}, nil
	}
}
