package protocol

// Version16 is the only protocol version served.
const Version16 = "1.6"

// Subprotocol16 is the WebSocket subprotocol token for OCPP 1.6 JSON.
const Subprotocol16 = "ocpp1.6"

// Actions handled or issued by the central system.
const (
	ActionAuthorize            = "Authorize"
	ActionBootNotification     = "BootNotification"
	ActionHeartbeat            = "Heartbeat"
	ActionMeterValues          = "MeterValues"
	ActionStartTransaction     = "StartTransaction"
	ActionStatusNotification   = "StatusNotification"
	ActionClearChargingProfile = "ClearChargingProfile"
	ActionSetChargingProfile   = "SetChargingProfile"
)

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationPending  = "Pending"
	RegistrationRejected = "Rejected"
)

// Authorization status values (IdTagInfo.status).
const (
	AuthorizationAccepted     = "Accepted"
	AuthorizationBlocked      = "Blocked"
	AuthorizationExpired      = "Expired"
	AuthorizationInvalid      = "Invalid"
	AuthorizationConcurrentTx = "ConcurrentTx"
)

// StatusNotification status values.
const (
	ConnectorAvailable     = "Available"
	ConnectorPreparing     = "Preparing"
	ConnectorCharging      = "Charging"
	ConnectorSuspendedEVSE = "SuspendedEVSE"
	ConnectorSuspendedEV   = "SuspendedEV"
	ConnectorFinishing     = "Finishing"
	ConnectorReserved      = "Reserved"
	ConnectorUnavailable   = "Unavailable"
	ConnectorFaulted       = "Faulted"
)

// Smart charging enumerations.
const (
	PurposeChargePointMaxProfile = "ChargePointMaxProfile"
	PurposeTxDefaultProfile      = "TxDefaultProfile"
	PurposeTxProfile             = "TxProfile"

	KindAbsolute  = "Absolute"
	KindRecurring = "Recurring"
	KindRelative  = "Relative"

	RateUnitWatts   = "W"
	RateUnitAmperes = "A"

	ChargingProfileAccepted     = "Accepted"
	ChargingProfileRejected     = "Rejected"
	ChargingProfileNotSupported = "NotSupported"

	ClearChargingProfileAccepted = "Accepted"
	ClearChargingProfileUnknown  = "Unknown"
)
