package credstore

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// SSIDSize is the capacity of the network identity field in bytes.
	SSIDSize = 32

	// PasswordSize is the capacity of the passphrase field in bytes.
	PasswordSize = 64

	// RecordSize is the size of the persisted record: ssid followed by password.
	RecordSize = SSIDSize + PasswordSize
)

// Credentials identifies the access point to join in station mode.
// Values are replaced wholesale, never edited field by field.
type Credentials struct {
	SSID     string
	Password string
}

// NewCredentials returns credentials after checking both fields fit the record.
func NewCredentials(ssid, password string) (Credentials, error) {
	c := Credentials{SSID: ssid, Password: password}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Validate reports whether both fields fit their fixed capacity and contain no NUL bytes.
func (c Credentials) Validate() error {
	if len(c.SSID) > SSIDSize {
		return fmt.Errorf("%w: ssid is %d bytes (max %d)", ErrFieldTooLong, len(c.SSID), SSIDSize)
	}
	if len(c.Password) > PasswordSize {
		return fmt.Errorf("%w: password is %d bytes (max %d)", ErrFieldTooLong, len(c.Password), PasswordSize)
	}
	if strings.IndexByte(c.SSID, 0) >= 0 || strings.IndexByte(c.Password, 0) >= 0 {
		return fmt.Errorf("%w: fields must not contain NUL bytes", ErrInvalidField)
	}
	return nil
}

// IsZero reports whether no network has been configured.
func (c Credentials) IsZero() bool {
	return c.SSID == "" && c.Password == ""
}

// String masks the passphrase.
func (c Credentials) String() string {
	if c.Password == "" {
		return fmt.Sprintf("ssid=%q password=<none>", c.SSID)
	}
	return fmt.Sprintf("ssid=%q password=<%d bytes>", c.SSID, len(c.Password))
}

// MarshalBinary encodes the credentials into the fixed 96-byte layout with
// NUL padding. Fields that would not survive a round trip are rejected.
func (c Credentials) MarshalBinary() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rec := make([]byte, RecordSize)
	copy(rec[:SSIDSize], c.SSID)
	copy(rec[SSIDSize:], c.Password)
	return rec, nil
}

// UnmarshalBinary decodes a fixed-layout record. A field that fills its whole
// capacity has no terminator.
func (c *Credentials) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("record is %d bytes, want %d", len(data), RecordSize)
	}
	c.SSID = cString(data[:SSIDSize])
	c.Password = cString(data[SSIDSize:])
	return nil
}

func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}
