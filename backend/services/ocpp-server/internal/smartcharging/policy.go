package smartcharging

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
)

// Defaults used when Policy fields are zero.
const (
	DefaultMinimumLimit = 240
	DefaultUnit         = protocol.RateUnitWatts
)

// Fixed shape of the profile pushed to every charge point.
const (
	ProfileConnectorID = 0
	ProfileID          = 2
	ProfileStackLevel  = 2
	MinChargingRate    = 0.1
)

var (
	ErrUnexpectedUnit  = errors.New("smartcharging: unexpected power unit")
	ErrProfileRejected = errors.New("smartcharging: charging profile rejected")
)

// Reading is an instantaneous power sample.
type Reading struct {
	Value float64
	Unit  string
}

// Policy turns a solar reading into a charging cap.
type Policy struct {
	MinimumLimit float64
	Unit         string
}

func (p Policy) minimum() float64 {
	if p.MinimumLimit <= 0 {
		return DefaultMinimumLimit
	}
	return p.MinimumLimit
}

func (p Policy) unit() string {
	if p.Unit == "" {
		return DefaultUnit
	}
	return p.Unit
}

// Cap clamps a reading to the minimum and rounds it to the 0.1 step OCPP accepts.
func (p Policy) Cap(reading Reading) (float64, error) {
	if reading.Unit != p.unit() {
		return 0, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedUnit, reading.Unit, p.unit())
	}
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return 0, fmt.Errorf("smartcharging: invalid reading %v", reading.Value)
	}
	return math.Round(math.Max(reading.Value, p.minimum())*10) / 10, nil
}

// Decide returns the new cap and true when it differs from lastCap.
func (p Policy) Decide(reading Reading, lastCap float64) (float64, bool, error) {
	limit, err := p.Cap(reading)
	if err != nil {
		return 0, false, err
	}
	if limit == lastCap {
		return lastCap, false, nil
	}
	return limit, true, nil
}

// ClearRequest clears every installed profile.
func ClearRequest() protocol.ClearChargingProfileRequest {
	return protocol.ClearChargingProfileRequest{}
}

// ProfileRequest builds a fresh charge-point-wide absolute profile capped at limit.
func ProfileRequest(limit float64, unit string, start time.Time) protocol.SetChargingProfileRequest {
	startSchedule := protocol.NewDateTime(start.UTC())
	minRate := MinChargingRate
	return protocol.SetChargingProfileRequest{
		ConnectorID: ProfileConnectorID,
		CsChargingProfiles: protocol.ChargingProfile{
			ChargingProfileID:      ProfileID,
			StackLevel:             ProfileStackLevel,
			ChargingProfilePurpose: protocol.PurposeChargePointMaxProfile,
			ChargingProfileKind:    protocol.KindAbsolute,
			ChargingSchedule: protocol.ChargingSchedule{
				StartSchedule:    &startSchedule,
				ChargingRateUnit: unit,
				ChargingSchedulePeriod: []protocol.ChargingSchedulePeriod{
					{StartPeriod: 0, Limit: limit},
				},
				MinChargingRate: &minRate,
			},
		},
	}
}
