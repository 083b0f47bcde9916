package models

import "time"

// Station is the in-memory view of a charge point, as reported by the charge point itself.
type Station struct {
	ID                string            `json:"id"`
	Vendor            string            `json:"vendor,omitempty"`
	Model             string            `json:"model,omitempty"`
	SerialNumber      string            `json:"serialNumber,omitempty"`
	FirmwareVersion   string            `json:"firmwareVersion,omitempty"`
	Status            string            `json:"status,omitempty"`
	ErrorCode         string            `json:"errorCode,omitempty"`
	Connectors        map[int]Connector `json:"connectors,omitempty"`
	LastBoot          time.Time         `json:"lastBoot"`
	LastHeartbeat     time.Time         `json:"lastHeartbeat"`
	LastMeterValue    time.Time         `json:"lastMeterValue"`
	LastIdTag         string            `json:"lastIdTag,omitempty"`
	TransactionsCount int               `json:"transactionsCount"`
}

// Connector holds the last reported state of one connector.
type Connector struct {
	Status    string    `json:"status"`
	ErrorCode string    `json:"errorCode,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AppliedProfile is the charging limit last installed on a charge point.
type AppliedProfile struct {
	ChargePointID string    `json:"chargePointId"`
	Limit         float64   `json:"limit"`
	Unit          string    `json:"unit"`
	SolarPower    float64   `json:"solarPower"`
	AppliedAt     time.Time `json:"appliedAt"`
}
