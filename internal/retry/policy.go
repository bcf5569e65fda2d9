package retry

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Policy decides which callback failures are worth another attempt.
type Policy struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	conflict       bool
	statusCodes    []int
}

// DefaultPolicy retries gateway errors, 409 Conflict and connection failures.
func DefaultPolicy() *Policy {
	return &Policy{
		gatewayError:   true,
		connectFailure: true,
		conflict:       true,
	}
}

// ParsePolicy reads a comma separated list of 5xx, gateway-error,
// connect-failure, retriable-4xx and literal status codes.
func ParsePolicy(s string) (*Policy, error) {
	p := &Policy{}
	for _, term := range strings.Split(s, ",") {
		switch term = strings.TrimSpace(term); term {
		case "":
		case "5xx":
			p.serverError = true
		case "gateway-error":
			p.gatewayError = true
		case "connect-failure":
			p.connectFailure = true
		case "retriable-4xx":
			p.conflict = true
		default:
			statusCode, err := strconv.Atoi(term)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, fmt.Errorf("invalid retry condition: %q", term)
			}
			p.statusCodes = append(p.statusCodes, statusCode)
		}
	}
	return p, nil
}

func (p *Policy) RetryResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case p.serverError && code >= 500 && code < 600:
		return true
	case p.gatewayError && code >= 502 && code <= 504:
		return true
	case p.conflict && code == http.StatusConflict:
		return true
	}
	for _, c := range p.statusCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (p *Policy) RetryError(err error) bool {
	if !p.connectFailure && !p.serverError {
		return false
	}
	type temporary interface{ Temporary() bool }
	var t temporary
	return (errors.As(err, &t) && t.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
