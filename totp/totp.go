// Package totp implements RFC 6238 time-based one-time passwords for MFA
// enrollment and login verification. Verification accepts a configurable
// clock-skew window (default ±1 step of 30s) to tolerate client drift.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

// ErrInvalidSecret is returned when a stored secret cannot be decoded.
var ErrInvalidSecret = errors.New("totp: invalid secret")

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config holds the TOTP parameters shared between enrollment and
// verification. Zero values mean issuer-less 6-digit SHA1 codes with a 30s
// period, the interoperable defaults for authenticator apps.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string // SHA1 (default), SHA256, SHA512
}

// Generator derives and verifies codes for one Config. It is immutable and
// safe for concurrent use.
type Generator struct {
	cfg Config
}

// NewGenerator applies defaults and returns a Generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &Generator{cfg: cfg}
}

// GenerateSecret draws a fresh 160-bit secret, returned base32-encoded
// without padding (the encoding authenticator apps expect).
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// CodeAt computes the code for the given secret at time t.
func (g *Generator) CodeAt(secret string, t time.Time) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(raw, t.Unix()/int64(g.cfg.Period), g.cfg.Digits, g.cfg.Algorithm)
}

// CurrentCode computes the code for the current time step.
func (g *Generator) CurrentCode(secret string) (string, error) {
	return g.CodeAt(secret, time.Now())
}

// Verify reports whether code matches the secret within ±window time steps
// of now. Comparison is constant-time per candidate step.
func (g *Generator) Verify(secret, code string, window int) bool {
	return g.verifyAt(secret, code, window, time.Now())
}

func (g *Generator) verifyAt(secret, code string, window int, now time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != g.cfg.Digits || !numeric(trimmed) {
		return false
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return false
	}
	if window < 0 {
		window = 0
	}

	base := now.Unix() / int64(g.cfg.Period)
	for step := -window; step <= window; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		candidate, err := hotp(raw, counter, g.cfg.Digits, g.cfg.Algorithm)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(trimmed)) == 1 {
			return true
		}
	}
	return false
}

// ProvisioningURI renders the otpauth:// URI encoded into enrollment QR
// codes.
func (g *Generator) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(g.cfg.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", g.cfg.Issuer)
	v.Set("period", strconv.Itoa(g.cfg.Period))
	v.Set("digits", strconv.Itoa(g.cfg.Digits))
	v.Set("algorithm", strings.ToUpper(g.cfg.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(secret))
	raw, err := b32.DecodeString(normalized)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}

func hotp(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("totp: unsupported algorithm")
	}
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
