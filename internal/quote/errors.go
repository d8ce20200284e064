package quote

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidParameter
	KindUpstream
	KindGatewayTimeout
	KindBadGateway
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindUpstream:
		return "upstream_error"
	case KindGatewayTimeout:
		return "gateway_timeout"
	case KindBadGateway:
		return "bad_gateway"
	default:
		return "internal_error"
	}
}

// Error is every failure FetchQuote can return. StatusCode is the HTTP status
// the caller should see; for KindUpstream it is the upstream's own status
// when that is an error status, 502 otherwise.
type Error struct {
	Kind     Kind
	Symbol   string
	Upstream int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstream:
		return fmt.Sprintf("upstream returned %d for %s: %s", e.Upstream, e.Symbol, e.Body)
	case KindGatewayTimeout:
		return fmt.Sprintf("request to upstream timed out for %s", e.Symbol)
	case KindBadGateway:
		return fmt.Sprintf("failed to fetch data for %s: %v", e.Symbol, e.Err)
	case KindInvalidParameter:
		return fmt.Sprintf("invalid parameter: %v", e.Err)
	default:
		return fmt.Sprintf("quote proxy error for %s: %v", e.Symbol, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUpstream:
		// 1xx/2xx/3xx codes cannot carry the detail body.
		if e.Upstream < http.StatusBadRequest {
			return http.StatusBadGateway
		}
		return e.Upstream
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case KindBadGateway:
		return http.StatusBadGateway
	case KindInvalidParameter:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the message shown to the caller. Internal errors stay generic;
// the cause is only logged.
func (e *Error) Detail() string {
	if e.Kind == KindInternal {
		return "internal error while proxying quote request"
	}
	return e.Error()
}

// Status maps any error to the HTTP status and detail a handler should send.
func Status(err error) (int, string) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.StatusCode(), qe.Detail()
	}
	return http.StatusInternalServerError, "internal error while proxying quote request"
}
