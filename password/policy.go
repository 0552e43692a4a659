package password

import "strings"

// specialChars is the symbol set accepted by the strength policy.
const specialChars = `!@#$%^&*(),.?":{}|<>`

const minLength = 12

// Strength policy failure reasons, reported in check order.
const (
	ReasonTooShort  = "password must be at least 12 characters long"
	ReasonNoUpper   = "password must contain at least one uppercase letter"
	ReasonNoLower   = "password must contain at least one lowercase letter"
	ReasonNoDigit   = "password must contain at least one number"
	ReasonNoSpecial = "password must contain at least one special character"
)

// ValidateStrength checks the password against the strength policy and
// returns the first violated rule. Rules are evaluated in a fixed order:
// length, uppercase, lowercase, digit, symbol.
func ValidateStrength(pw string) (bool, string) {
	if len(pw) < minLength {
		return false, ReasonTooShort
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	switch {
	case !upper:
		return false, ReasonNoUpper
	case !lower:
		return false, ReasonNoLower
	case !digit:
		return false, ReasonNoDigit
	case !special:
		return false, ReasonNoSpecial
	}
	return true, ""
}
