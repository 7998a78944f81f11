package security

import (
	"errors"
	"fmt"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 10
	minZxcvbnScore    = 3
)

// ErrWeakPassword indicates the password fails the strength policy.
var ErrWeakPassword = errors.New("password does not meet the strength policy")

// ValidatePassword enforces the account password policy: a minimum length
// and a zxcvbn strength score. The user inputs (username, email) are fed
// to the estimator so passwords derived from them score low.
func ValidatePassword(password string, userInputs ...string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	inputs := make([]string, 0, len(userInputs))
	for _, input := range userInputs {
		if input != "" {
			inputs = append(inputs, input)
		}
	}

	strength := zxcvbn.PasswordStrength(password, inputs)
	if strength.Score < minZxcvbnScore {
		return fmt.Errorf("%w: too guessable", ErrWeakPassword)
	}

	return nil
}
