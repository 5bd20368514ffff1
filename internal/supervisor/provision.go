package supervisor

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/credstore"
)

// provisioning is the configuration payload that replaces stored credentials.
type provisioning struct {
	SSID     *string `json:"ssid"`
	Password string  `json:"password"`
}

// provision receives configuration payloads from the control server. A JSON
// object with an "ssid" key is saved as the new credentials and takes effect
// at the next boot. Anything else is accepted as opaque and only logged.
func (s *Supervisor) provision(payload []byte) error {
	var p provisioning
	if err := json.Unmarshal(payload, &p); err != nil || p.SSID == nil {
		s.log.Info("Received configuration payload", zap.ByteString("payload", payload))
		return nil
	}

	creds, err := credstore.NewCredentials(*p.SSID, p.Password)
	if err != nil {
		return fmt.Errorf("rejected provisioning payload: %w", err)
	}
	if err := s.store.Save(creds); err != nil {
		return fmt.Errorf("failed to store provisioned credentials: %w", err)
	}

	s.log.Info("Stored new credentials; they apply at next boot", zap.Stringer("credentials", creds))
	return nil
}
