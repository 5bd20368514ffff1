package deviceclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func dialError(err error) error {
	return &url.Error{
		Op:  "Get",
		URL: "http://192.168.4.16/api/v1/info",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: err},
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		wantSub   NetworkErrorSubtype
		retryable bool
	}{
		{"timeout", dialError(&timeoutError{}), ErrTypeTimeout, NetworkErrorTimeout, true},
		{"connection refused", dialError(syscall.ECONNREFUSED), ErrTypeConnectionRefused, NetworkErrorConnectionRefused, true},
		{"host unreachable", dialError(syscall.EHOSTUNREACH), ErrTypeNetwork, NetworkErrorHostUnreachable, true},
		{"network unreachable", dialError(syscall.ENETUNREACH), ErrTypeNetwork, NetworkErrorNetworkUnreachable, true},
		{"dns", &url.Error{Op: "Get", URL: "http://bench.local", Err: &net.DNSError{Name: "bench.local", Err: "no such host"}}, ErrTypeDNS, NetworkErrorDNS, false},
		{"other", errors.New("connection reset"), ErrTypeNetwork, NetworkErrorGeneral, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devErr := ClassifyNetworkError(tt.err, "192.168.4.16")
			if devErr == nil {
				t.Fatal("ClassifyNetworkError() = nil")
			}
			if devErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", devErr.Type, tt.wantType)
			}
			if devErr.NetworkSubtype != tt.wantSub {
				t.Errorf("NetworkSubtype = %v, want %v", devErr.NetworkSubtype, tt.wantSub)
			}
			if devErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", devErr.Retryable, tt.retryable)
			}
			if devErr.Device != "192.168.4.16" {
				t.Errorf("Device = %q", devErr.Device)
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) != nil")
	}
}

func TestNewHTTPError_OnlyUnavailableRetried(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, false},
		{http.StatusLengthRequired, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		if got := NewHTTPError(tt.status, "").Retryable; got != tt.retryable {
			t.Errorf("NewHTTPError(%d).Retryable = %v, want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"network", &DeviceError{Type: ErrTypeNetwork, Retryable: true}, true},
		{"wrapped", fmt.Errorf("push: %w", &DeviceError{Type: ErrTypeTimeout, Retryable: true}), true},
		{"validation", NewValidationError("bad"), false},
		{"parse", NewParseError("bad", nil), false},
		{"unknown", errors.New("unknown error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "timeout"},
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused}, "control server"},
		{"unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable}, "unreachable"},
		{"http with body", NewHTTPError(500, "content too long\n"), "content too long"},
		{"http without body", NewHTTPError(404, ""), "HTTP 404"},
		{"validation", NewValidationError("payload is empty"), "payload is empty"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("GetShortErrorMessage() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"too long", NewHTTPError(http.StatusInternalServerError, "content too long"), "1024 bytes"},
		{"length required", NewHTTPError(http.StatusLengthRequired, "Length Required"), "Content-Length"},
		{"missing route", NewHTTPError(http.StatusNotFound, ""), "degraded"},
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused}, "joins the network"},
		{"dns", &DeviceError{Type: ErrTypeDNS}, "wifiboot scan"},
		{"unknown", errors.New("boom"), "unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetTroubleshootingHint(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("GetTroubleshootingHint() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrTypeHTTP.String() != "HTTP Error" {
		t.Errorf("ErrTypeHTTP.String() = %q", ErrTypeHTTP.String())
	}
	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("ErrorType(99).String() = %q", ErrorType(99).String())
	}
}
