package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"syscall"

	"github.com/pkg/errors"

	"github.com/trezcool/vims/core"
)

// User facing messages.
const (
	MsgTimeout          = "Connection timed out. Please try again."
	MsgOffline          = "You are offline. Please check your internet connection."
	MsgUnreachable      = "The server is not responding. Please try again later."
	MsgNotFound         = "The item you were looking for could not be found."
	MsgServer           = "Our servers are experiencing issues. Please try again later."
	MsgUnexpected       = "An unexpected error occurred."
	MsgSessionExpired   = "Your session has expired. Please log in again."
	MsgConnectionFailed = "Connection failed. Please log in again."
)

// codeTokenNotValid is the only error code that triggers a token refresh.
const codeTokenNotValid = "token_not_valid"

// Kind classifies a failed API call.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindOffline
	KindUnreachable
	KindAuth
	KindForbidden
	KindValidation
	KindNotFound
	KindServer
)

var kindNames = [...]string{"unknown", "timeout", "offline", "unreachable", "auth", "forbidden", "validation", "not_found", "server"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsTransport reports whether no response was received.
func (k Kind) IsTransport() bool {
	return k == KindTimeout || k == KindOffline || k == KindUnreachable
}

// Error is a failed API call carrying one human readable Message.
// Fields holds the per-field errors of a validation failure, in the order the server sent them.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  []core.FieldError
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// ValidationError converts the error for form rendering.
func (e *Error) ValidationError() *core.ValidationError {
	return &core.ValidationError{Err: errors.New(e.Message), Fields: e.Fields}
}

// ErrSessionExpired is matched (errors.Is) by every error that ends the session:
// missing refresh token or failed refresh.
var ErrSessionExpired = errors.New("session expired")

type SessionExpiredError struct {
	Message string
	Err     error
}

func (e *SessionExpiredError) Error() string        { return e.Message }
func (e *SessionExpiredError) Unwrap() error        { return e.Err }
func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

// IsCanceled reports whether err is a cancellation, which is never shown to users.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Message is the user facing text of err.
func Message(err error) string {
	var apiErr *Error
	var sessErr *SessionExpiredError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sessErr):
		return sessErr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return MsgUnexpected
	}
}

// transportError classifies a failure where no response was received.
// Cancellation is returned as is.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}

	e := &Error{Kind: KindUnreachable, Message: MsgUnreachable, Err: err}

	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		e.Kind, e.Message = KindTimeout, MsgTimeout
	case errors.As(err, &dnsErr) && !dnsErr.IsNotFound:
		e.Kind, e.Message = KindOffline, MsgOffline
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN), errors.Is(err, syscall.EHOSTUNREACH):
		e.Kind, e.Message = KindOffline, MsgOffline
	}
	return e
}

type member struct {
	key   string
	value json.RawMessage
}

// members decodes the top level of a JSON object keeping the document order.
func members(body []byte) []member {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return out
		}
		out = append(out, member{key: key, value: raw})
	}
	return out
}

// firstString returns a string value or the first element of a list value.
func firstString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if err = json.Unmarshal(list[0], &s); err == nil {
			return s
		}
	}
	return ""
}

// responseError normalizes a non-2xx response. The message is, by priority:
// "detail", "message", the first value of the first key, a status text, a generic text.
func responseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var detail, message string
	mbrs := members(body)
	for _, m := range mbrs {
		switch m.key {
		case "detail":
			detail = firstString(m.value)
		case "message":
			message = firstString(m.value)
		case "code":
			e.Code = firstString(m.value)
		default:
			if s := firstString(m.value); s != "" {
				e.Fields = append(e.Fields, core.FieldError{Field: m.key, Error: s})
			}
		}
	}

	switch {
	case detail != "":
		e.Message = detail
	case message != "":
		e.Message = message
	case len(mbrs) > 0 && firstString(mbrs[0].value) != "":
		e.Message = firstString(mbrs[0].value)
	case status == http.StatusNotFound:
		e.Message = MsgNotFound
	case status >= http.StatusInternalServerError:
		e.Message = MsgServer
	default:
		e.Message = MsgUnexpected
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
	case len(e.Fields) > 0 && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		e.Kind = KindValidation
	default:
		e.Kind = KindUnknown
	}
	return e
}

// isTokenNotValid reports whether a response is the one signal that triggers a refresh.
func isTokenNotValid(status int, body []byte) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	for _, m := range members(body) {
		if m.key == "code" {
			return firstString(m.value) == codeTokenNotValid
		}
	}
	return false
}
