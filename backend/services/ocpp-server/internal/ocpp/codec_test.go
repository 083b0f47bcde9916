package ocpp

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
)

func TestEncodeDecodeCallRoundTrip(t *testing.T) {
	minRate := 0.1
	start := protocol.NewDateTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	payloads := map[string]interface{}{
		protocol.ActionBootNotification: protocol.BootNotificationRequest{ChargePointVendor: "Acme", ChargePointModel: "X1"},
		protocol.ActionHeartbeat:        protocol.HeartbeatRequest{},
		protocol.ActionAuthorize:        protocol.AuthorizeRequest{IdTag: "TAG-1"},
		protocol.ActionStartTransaction: protocol.StartTransactionRequest{ConnectorID: 1, IdTag: "TAG-1", MeterStart: 42, Timestamp: start},
		protocol.ActionStatusNotification: protocol.StatusNotificationRequest{
			ConnectorID: 1, ErrorCode: "NoError", Status: protocol.ConnectorCharging,
		},
		protocol.ActionMeterValues: protocol.MeterValuesRequest{
			ConnectorID: 1,
			MeterValue: []protocol.MeterValue{{
				Timestamp:    start,
				SampledValue: []protocol.SampledValue{{Value: "1200", Unit: "W"}},
			}},
		},
		protocol.ActionClearChargingProfile: protocol.ClearChargingProfileRequest{},
		protocol.ActionSetChargingProfile: protocol.SetChargingProfileRequest{
			ConnectorID: 0,
			CsChargingProfiles: protocol.ChargingProfile{
				ChargingProfileID:      2,
				StackLevel:             2,
				ChargingProfilePurpose: protocol.PurposeChargePointMaxProfile,
				ChargingProfileKind:    protocol.KindAbsolute,
				ChargingSchedule: protocol.ChargingSchedule{
					StartSchedule:          &start,
					ChargingRateUnit:       protocol.RateUnitWatts,
					ChargingSchedulePeriod: []protocol.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 1234.5}},
					MinChargingRate:        &minRate,
				},
			},
		},
	}

	for action, payload := range payloads {
		call, err := NewCall("id-"+action, action, payload)
		if err != nil {
			t.Fatalf("%s: new call: %v", action, err)
		}
		raw, err := Encode(call)
		if err != nil {
			t.Fatalf("%s: encode: %v", action, err)
		}
		if bytes.Contains(raw, []byte("null")) {
			t.Fatalf("%s: encoded frame contains null: %s", action, raw)
		}

		decoded, err := Decode(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", action, err)
		}
		if decoded.Type != MessageTypeCall || decoded.UniqueID != call.UniqueID || decoded.Action != action {
			t.Fatalf("%s: unexpected envelope %+v", action, decoded)
		}

		var want, got interface{}
		if err := json.Unmarshal(call.Payload, &want); err != nil {
			t.Fatalf("%s: unmarshal original payload: %v", action, err)
		}
		if err := json.Unmarshal(decoded.Payload, &got); err != nil {
			t.Fatalf("%s: unmarshal decoded payload: %v", action, err)
		}
		wantJSON, _ := json.Marshal(want)
		gotJSON, _ := json.Marshal(got)
		if !bytes.Equal(wantJSON, gotJSON) {
			t.Fatalf("%s: payload mismatch\nwant %s\ngot  %s", action, wantJSON, gotJSON)
		}
	}
}

func TestDecodePayloadRestoresTypedValues(t *testing.T) {
	raw := []byte(`[2,"abc","StartTransaction",{"connectorId":2,"idTag":"TAG","meterStart":7,"timestamp":"2024-05-01T12:30:00+02:00"}]`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	req, err := DecodePayload[protocol.StartTransactionRequest](msg.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if req.ConnectorID != 2 || req.IdTag != "TAG" || req.MeterStart != 7 || req.ReservationID != nil {
		t.Fatalf("unexpected request %+v", req)
	}
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	if !req.Timestamp.Equal(want) {
		t.Fatalf("expected %s, got %s", want, req.Timestamp.Time)
	}
}

func TestMarshalPayloadDropsNulls(t *testing.T) {
	type nested struct {
		Keep  string      `json:"keep"`
		Drop  *int        `json:"drop"`
		Inner interface{} `json:"inner"`
	}
	body, err := MarshalPayload(nested{Keep: "x", Inner: map[string]interface{}{"a": nil, "b": []interface{}{map[string]interface{}{"c": nil}}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"inner":{"b":[{}]},"keep":"x"}` {
		t.Fatalf("unexpected body %s", body)
	}

	empty, err := MarshalPayload(nil)
	if err != nil {
		t.Fatalf("marshal nil: %v", err)
	}
	if string(empty) != "{}" {
		t.Fatalf("expected empty object, got %s", empty)
	}
}

func TestMarshalPayloadKeepsNumberPrecision(t *testing.T) {
	body, err := MarshalPayload(map[string]interface{}{"limit": 3456.7, "big": int64(9007199254740993)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"big":9007199254740993,"limit":3456.7}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestEncodeResultAndError(t *testing.T) {
	result, err := NewCallResult("r-1", protocol.MeterValuesResponse{})
	if err != nil {
		t.Fatalf("new result: %v", err)
	}
	raw, err := Encode(result)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	if string(raw) != `[3,"r-1",{}]` {
		t.Fatalf("unexpected result frame %s", raw)
	}

	raw, err = Encode(NewCallError("e-1", ErrorCodeNotImplemented, "unknown action FooBar"))
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if string(raw) != `[4,"e-1","NotImplemented","unknown action FooBar",{}]` {
		t.Fatalf("unexpected error frame %s", raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if decoded.Type != MessageTypeCallError || decoded.ErrorCode != ErrorCodeNotImplemented || decoded.ErrorDescription != "unknown action FooBar" {
		t.Fatalf("unexpected decoded error %+v", decoded)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `hello`, want: ErrMalformedEnvelope},
		{name: "object", raw: `{"a":1}`, want: ErrMalformedEnvelope},
		{name: "too short", raw: `[2,"a"]`, want: ErrMalformedEnvelope},
		{name: "string type", raw: `["2","a","Heartbeat",{}]`, want: ErrMalformedEnvelope},
		{name: "unknown type", raw: `[5,"a","Heartbeat",{}]`, want: ErrUnknownMessageType},
		{name: "unknown type bad id", raw: `[9,7,{}]`, want: ErrUnknownMessageType},
		{name: "numeric id", raw: `[2,7,"Heartbeat",{}]`, want: ErrMalformedEnvelope},
		{name: "null id", raw: `[3,null,{}]`, want: ErrMalformedEnvelope},
		{name: "call missing payload", raw: `[2,"a","Heartbeat"]`, want: ErrMalformedEnvelope},
		{name: "call empty action", raw: `[2,"a","",{}]`, want: ErrMalformedEnvelope},
		{name: "call array payload", raw: `[2,"a","Heartbeat",[]]`, want: ErrMalformedEnvelope},
		{name: "result extra element", raw: `[3,"a",{},{}]`, want: ErrMalformedEnvelope},
		{name: "result string payload", raw: `[3,"a","ok"]`, want: ErrMalformedEnvelope},
		{name: "error short", raw: `[4,"a","GenericError","x"]`, want: ErrMalformedEnvelope},
		{name: "error null details", raw: `[4,"a","GenericError","x",null]`, want: ErrMalformedEnvelope},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeRejectsUnknownType(t *testing.T) {
	if _, err := Encode(&Message{Type: MessageType(7), UniqueID: "x"}); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected unknown type, got %v", err)
	}
	if _, err := Encode(&Message{Type: MessageTypeCall, UniqueID: "x"}); err == nil {
		t.Fatalf("expected error for call without action")
	}
}
