package events

import (
	"errors"
)

// Payload keys.
const (
	KeyState        = "state"
	KeyErrorCode    = "errorCode"
	KeyErrorMessage = "errorMessage"
)

// Payload is the mapping delivered to a sink. It always holds KeyState and,
// for lifecycle errors, KeyErrorCode and KeyErrorMessage.
type Payload map[string]any

// State returns the state name carried by the payload.
func (p Payload) State() string {
	s, _ := p[KeyState].(string)
	return s
}

// ErrorCode returns the error code, if present.
func (p Payload) ErrorCode() (string, bool) {
	s, ok := p[KeyErrorCode].(string)
	return s, ok
}

// ErrorMessage returns the error message, if present.
func (p Payload) ErrorMessage() (string, bool) {
	s, ok := p[KeyErrorMessage].(string)
	return s, ok
}

func (p Payload) clone() Payload {
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// ErrorDetail is the driver-supplied description of a lifecycle error.
type ErrorDetail struct {
	Code    string
	Message string
}

func (e *ErrorDetail) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// NewError returns an *ErrorDetail as an error.
func NewError(code, message string) error {
	return &ErrorDetail{Code: code, Message: message}
}

// defaultErrorCode is used when the reported error carries no code.
const defaultErrorCode = "error"

// errorFields extracts code and message from err. An *ErrorDetail anywhere in
// the chain supplies both; any other error uses defaultErrorCode and its text.
func errorFields(err error) (code, message string) {
	var detail *ErrorDetail
	if errors.As(err, &detail) {
		return detail.Code, detail.Message
	}
	return defaultErrorCode, err.Error()
}

func lifecyclePayload(state LifecycleState, err error) Payload {
	p := Payload{KeyState: state.String()}
	if state == LifecycleError && err != nil {
		code, msg := errorFields(err)
		p[KeyErrorCode] = code
		p[KeyErrorMessage] = msg
	}
	return p
}

func focusExposurePayload(state FocusExposureState) Payload {
	return Payload{KeyState: state.String()}
}
