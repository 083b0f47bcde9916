package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/schema"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/service"
)

func setup(t *testing.T) (*ocpp.Router, *service.StationState) {
	t.Helper()

	original := now
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = original })

	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	state := service.NewStationState()
	router := ocpp.NewRouter(validator, protocol.Version16, nil, zap.NewNop())
	RegisterAll(router, state, zap.NewNop())
	return router, state
}

func dispatch(t *testing.T, router *ocpp.Router, action, payload string) *ocpp.Message {
	t.Helper()
	call, err := ocpp.Decode([]byte(`[2,"u-1","` + action + `",` + payload + `]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	response := router.Dispatch(context.Background(), "CP-1", call)
	if response.Type != ocpp.MessageTypeCallResult {
		t.Fatalf("%s: expected CallResult, got %s %s: %s", action, response.Type, response.ErrorCode, response.ErrorDescription)
	}
	if response.UniqueID != "u-1" {
		t.Fatalf("%s: expected unique id u-1, got %s", action, response.UniqueID)
	}
	return response
}

func TestBootNotificationAccepted(t *testing.T) {
	router, state := setup(t)

	response := dispatch(t, router, "BootNotification", `{"chargePointVendor":"Acme","chargePointModel":"X1","firmwareVersion":"1.0.3"}`)

	var got map[string]interface{}
	if err := json.Unmarshal(response.Payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["status"] != "Accepted" || got["interval"] != float64(10) || got["currentTime"] != "2024-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected boot response %s", response.Payload)
	}

	station, ok := state.Get("CP-1")
	if !ok {
		t.Fatalf("station not recorded")
	}
	if station.Vendor != "Acme" || station.Model != "X1" || station.FirmwareVersion != "1.0.3" {
		t.Fatalf("unexpected station %+v", station)
	}
}

func TestHeartbeatReturnsCurrentTime(t *testing.T) {
	router, state := setup(t)

	response := dispatch(t, router, "Heartbeat", `{}`)
	if string(response.Payload) != `{"currentTime":"2024-05-01T12:00:00.000Z"}` {
		t.Fatalf("unexpected heartbeat response %s", response.Payload)
	}
	station, _ := state.Get("CP-1")
	if !station.LastHeartbeat.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("heartbeat not recorded: %v", station.LastHeartbeat)
	}
}

func TestEmptyAcknowledgements(t *testing.T) {
	router, state := setup(t)

	response := dispatch(t, router, "MeterValues", `{"connectorId":1,"meterValue":[{"timestamp":"2024-05-01T11:59:00Z","sampledValue":[{"value":"1500","measurand":"Power.Active.Import","unit":"W"}]}]}`)
	if string(response.Payload) != `{}` {
		t.Fatalf("unexpected meter values response %s", response.Payload)
	}

	response = dispatch(t, router, "StatusNotification", `{"connectorId":1,"errorCode":"NoError","status":"Charging"}`)
	if string(response.Payload) != `{}` {
		t.Fatalf("unexpected status response %s", response.Payload)
	}

	station, _ := state.Get("CP-1")
	if station.Connectors[1].Status != "Charging" {
		t.Fatalf("connector status not recorded: %+v", station.Connectors)
	}
	if station.LastMeterValue.IsZero() {
		t.Fatalf("meter values not recorded")
	}
}

func TestAuthorizeAccepted(t *testing.T) {
	router, _ := setup(t)

	response := dispatch(t, router, "Authorize", `{"idTag":"ANY-TAG"}`)
	if string(response.Payload) != `{"idTagInfo":{"status":"Accepted"}}` {
		t.Fatalf("unexpected authorize response %s", response.Payload)
	}
}

func TestStartTransactionAlwaysReturnsPlaceholderID(t *testing.T) {
	router, state := setup(t)

	payloads := []string{
		`{"connectorId":1,"idTag":"A","meterStart":0,"timestamp":"2024-05-01T12:00:00Z"}`,
		`{"connectorId":2,"idTag":"B","meterStart":1200,"timestamp":"2024-05-01T12:05:00+02:00","reservationId":7}`,
		`{"connectorId":1,"idTag":"C","meterStart":99,"timestamp":"2024-05-01T12:10:00.123Z"}`,
	}
	for _, payload := range payloads {
		response := dispatch(t, router, "StartTransaction", payload)
		if string(response.Payload) != `{"idTagInfo":{"status":"Accepted"},"transactionId":1}` {
			t.Fatalf("unexpected start transaction response %s", response.Payload)
		}
	}

	station, _ := state.Get("CP-1")
	if station.TransactionsCount != 3 || station.LastIdTag != "C" {
		t.Fatalf("unexpected station %+v", station)
	}
}
