package protocol

// IdTagInfo is the authorization verdict attached to Authorize and StartTransaction.
type IdTagInfo struct {
	Status      string    `json:"status"`
	ExpiryDate  *DateTime `json:"expiryDate,omitempty"`
	ParentIdTag string    `json:"parentIdTag,omitempty"`
}

// BootNotificationRequest is sent by a charge point after (re)boot.
type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	Iccid                   string `json:"iccid,omitempty"`
	Imsi                    string `json:"imsi,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
}

// BootNotificationResponse registers the charge point.
type BootNotificationResponse struct {
	CurrentTime DateTime `json:"currentTime"`
	Interval    int      `json:"interval"`
	Status      string   `json:"status"`
}

// HeartbeatRequest has no fields.
type HeartbeatRequest struct{}

// HeartbeatResponse returns server time.
type HeartbeatResponse struct {
	CurrentTime DateTime `json:"currentTime"`
}

// SampledValue is one measurement inside a MeterValue.
type SampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// MeterValue groups sampled values taken at one instant.
type MeterValue struct {
	Timestamp    DateTime       `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// MeterValuesRequest carries periodic meter samples.
type MeterValuesRequest struct {
	ConnectorID   int          `json:"connectorId"`
	TransactionID *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

// MeterValuesResponse is an empty acknowledgement.
type MeterValuesResponse struct{}

// StatusNotificationRequest reports connector or charge point status.
type StatusNotificationRequest struct {
	ConnectorID     int       `json:"connectorId"`
	ErrorCode       string    `json:"errorCode"`
	Info            string    `json:"info,omitempty"`
	Status          string    `json:"status"`
	Timestamp       *DateTime `json:"timestamp,omitempty"`
	VendorID        string    `json:"vendorId,omitempty"`
	VendorErrorCode string    `json:"vendorErrorCode,omitempty"`
}

// StatusNotificationResponse is an empty acknowledgement.
type StatusNotificationResponse struct{}

// AuthorizeRequest asks whether an id tag may charge.
type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

// AuthorizeResponse carries the verdict.
type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// StartTransactionRequest announces a started transaction.
type StartTransactionRequest struct {
	ConnectorID   int      `json:"connectorId"`
	IdTag         string   `json:"idTag"`
	MeterStart    int      `json:"meterStart"`
	ReservationID *int     `json:"reservationId,omitempty"`
	Timestamp     DateTime `json:"timestamp"`
}

// StartTransactionResponse assigns the transaction id.
type StartTransactionResponse struct {
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
	TransactionID int       `json:"transactionId"`
}
