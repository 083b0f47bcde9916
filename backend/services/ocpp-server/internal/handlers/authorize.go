package handlers

import (
	"context"
	"encoding/json"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

// NewAuthorizeHandler accepts every id tag.
func NewAuthorizeHandler(state *service.StationState) ocpp.HandlerFunc {
	return func(ctx context.Context, stationID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.AuthorizeRequest](payload)
		if err != nil {
			return nil, err
		}
		state.RecordIdTag(stationID, req.IdTag)

		return protocol.AuthorizeResponse{
			IdTagInfo: protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
		}, nil
	}
}
