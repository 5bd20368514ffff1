package deviceclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-success status from the control server
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed status document
	ErrTypeParse
	// ErrTypeValidation indicates a request the device would reject anyway
	ErrTypeValidation
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the device port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a hostname resolution failure
	ErrTypeDNS
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is returned by every Client operation.
type DeviceError struct {
	Type           ErrorType
	Message        string
	StatusCode     int    // HTTP status, when the device answered
	Body           string // response text, when the device answered
	Err            error
	NetworkSubtype NetworkErrorSubtype
	Device         string
	Retryable      bool
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error to a DeviceError.
func ClassifyNetworkError(err error, device string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Device:         device,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Device:         device,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Device:         device,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Device:         device,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Device:         device,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, device)
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Device:         device,
		Retryable:      true,
	}
}

// NewNetworkError creates a classified network error.
func NewNetworkError(message, device string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, device)
	if classified == nil {
		return &DeviceError{Type: ErrTypeNetwork, Message: message, Device: device, Retryable: true}
	}
	classified.Message = message
	return classified
}

// NewHTTPError creates an error for a non-success response. Only 503 is
// retried: the control server answers 500 for payloads it will never accept.
func NewHTTPError(statusCode int, body string) *DeviceError {
	body = strings.TrimSpace(body)
	msg := fmt.Sprintf("unexpected status %d", statusCode)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    msg,
		StatusCode: statusCode,
		Body:       body,
		Retryable:  statusCode == http.StatusServiceUnavailable,
	}
}

func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeParse, Message: message, Err: err}
}

func NewValidationError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeValidation, Message: message}
}

func typeOf(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return 0, false
	}
	return devErr.Type, true
}

// IsNetworkError reports whether err happened below HTTP.
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

func IsHTTPError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeHTTP
}

func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsRetryable reports whether the request may succeed if sent again.
func IsRetryable(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Retryable
}

// GetShortErrorMessage returns a one-line message for the CLI.
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is the control server running?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		if devErr.Body != "" {
			return fmt.Sprintf("Device rejected request (HTTP %d: %s)", devErr.StatusCode, devErr.Body)
		}
		return fmt.Sprintf("Device error (HTTP %d)", devErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse device response"
	default:
		return devErr.Message
	}
}

// GetTroubleshootingHint returns advice for the CLI to print after an error.
func GetTroubleshootingHint(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device has joined the network",
			"  • Try increasing the timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • The control server starts only after the device joins the network",
			"  • Check the daemon log for a control server start failure",
			"  • Verify the port number (default is 80)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Run \"wifiboot scan\" and use the reported address",
			"  • Check that your machine resolves .local names",
		}, "\n")

	case ErrTypeHTTP:
		switch devErr.StatusCode {
		case http.StatusInternalServerError:
			return "The payload is too large for the device. Payloads must be under 1024 bytes."
		case http.StatusLengthRequired:
			return "The request did not declare its length. Send the payload with a Content-Length header."
		case http.StatusNotFound:
			return "The device does not serve this route. Check the daemon log for degraded mode."
		}
		return fmt.Sprintf("The device returned HTTP error %d.", devErr.StatusCode)

	case ErrTypeParse:
		return "The device answered with an unexpected status document. Check the daemon version."

	case ErrTypeValidation:
		return "The request was not sent. Check the error message for details."

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Verify you are on the same network as the device",
			"  • Try \"wifiboot scan\" to find it",
		}, "\n")
	}
}
