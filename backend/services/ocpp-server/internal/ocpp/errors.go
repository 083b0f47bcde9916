package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode is an OCPP-J CallError code.
type ErrorCode string

// OCPP 1.6 JSON error codes.
const (
	ErrorCodeNotImplemented               ErrorCode = "NotImplemented"
	ErrorCodeNotSupported                 ErrorCode = "NotSupported"
	ErrorCodeInternalError                ErrorCode = "InternalError"
	ErrorCodeProtocolError                ErrorCode = "ProtocolError"
	ErrorCodeSecurityError                ErrorCode = "SecurityError"
	ErrorCodeFormationViolation           ErrorCode = "FormationViolation"
	ErrorCodePropertyConstraintViolation  ErrorCode = "PropertyConstraintViolation"
	ErrorCodeOccurenceConstraintViolation ErrorCode = "OccurenceConstraintViolation"
	ErrorCodeTypeConstraintViolation      ErrorCode = "TypeConstraintViolation"
	ErrorCodeGenericError                 ErrorCode = "GenericError"
)

// Outcomes of an outbound call that never got a terminal response.
var (
	ErrTimeout        = errors.New("ocpp: timed out waiting for response")
	ErrConnectionLost = errors.New("ocpp: connection lost")
)

// CallError is a CallError frame received in answer to an outbound call.
type CallError struct {
	UniqueID    string
	Code        ErrorCode
	Description string
	Details     json.RawMessage
}

func (e *CallError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("ocpp: call error %s", e.Code)
	}
	return fmt.Sprintf("ocpp: call error %s: %s", e.Code, e.Description)
}
