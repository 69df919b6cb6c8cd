package broker

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// TOTPCode generates the current time-based one-time password for the
// broker's pre-market login handshake from the account's TOTP secret.
// Grounded on the teacher's cmd/mdengine main.go, which called
// totp.GenerateCode(cfg.AngelTOTPSecret, time.Now()) inline before the
// session-generation call; lifted out here since the session-generation
// call itself belongs to the broker HTTP client, which is out of scope.
func TOTPCode(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", fmt.Errorf("broker: generate totp code: %w", err)
	}
	return code, nil
}
