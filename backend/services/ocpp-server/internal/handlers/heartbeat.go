package handlers

import (
	"context"
	"encoding/json"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// NewHeartbeatHandler returns ack with current time.
func NewHeartbeatHandler(state *service.StationState) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		current := now()
		state.RecordHeartbeat(stationID, current)
		return protocol.HeartbeatResponse{
			CurrentTime: protocol.NewDateTime(current),
		}, nil
	}
}
