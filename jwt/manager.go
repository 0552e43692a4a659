package jwt

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm selects the asymmetric signing scheme.
type Algorithm string

const (
	AlgRS256 Algorithm = "RS256"
	AlgEdDSA Algorithm = "EdDSA"
)

// Token type discriminator carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Decode failures. Both match ErrInvalidToken under errors.Is; the split
// exists for internal logging only and must never leak into user-facing
// messages.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed or bad signature", ErrInvalidToken)

	errNoSigningKey = errors.New("jwt: signing key not configured")
)

// Config holds key material and token lifetimes. PrivateKeyPEM may be empty
// for verification-only deployments; signing then fails.
type Config struct {
	Algorithm     Algorithm
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims is the wire format shared by access and refresh tokens:
// sub, email, tenant_id, roles, permissions, department_id (nullable),
// iat, exp, type; refresh tokens additionally carry jti
// (RegisteredClaims.ID).
type Claims struct {
	Email        string   `json:"email,omitempty"`
	TenantID     string   `json:"tenant_id"`
	Roles        []string `json:"roles,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	DepartmentID *string  `json:"department_id"`
	TokenType    string   `json:"type"`
	jwt.RegisteredClaims
}

// JTI returns the unique refresh-token identifier, empty on access tokens.
func (c *Claims) JTI() string { return c.ID }

// AccessInput carries the identity snapshot embedded into an access token.
type AccessInput struct {
	UserID       string
	TenantID     string
	Email        string
	Roles        []string
	Permissions  []string
	DepartmentID *string
}

// Manager signs and verifies tokens for one key pair. Immutable after
// construction and safe for concurrent use.
type Manager struct {
	cfg       Config
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	verifyKey crypto.PublicKey
}

// NewManager parses the PEM key material and validates the configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: access and refresh TTLs must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("jwt: refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}
	if len(cfg.PublicKeyPEM) == 0 {
		return nil, errors.New("jwt: public key is required")
	}

	m := &Manager{cfg: cfg}
	var err error
	switch cfg.Algorithm {
	case AlgRS256, "":
		m.cfg.Algorithm = AlgRS256
		m.method = jwt.SigningMethodRS256
		if m.verifyKey, err = jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM); err != nil {
			return nil, fmt.Errorf("jwt: parse RSA public key: %w", err)
		}
		if len(cfg.PrivateKeyPEM) > 0 {
			if m.signKey, err = jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM); err != nil {
				return nil, fmt.Errorf("jwt: parse RSA private key: %w", err)
			}
		}
	case AlgEdDSA:
		m.method = jwt.SigningMethodEdDSA
		if m.verifyKey, err = parseEdPublicKey(cfg.PublicKeyPEM); err != nil {
			return nil, err
		}
		if len(cfg.PrivateKeyPEM) > 0 {
			if m.signKey, err = parseEdPrivateKey(cfg.PrivateKeyPEM); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", cfg.Algorithm)
	}

	return m, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// SignAccess mints a signed access token embedding the identity snapshot.
func (m *Manager) SignAccess(in AccessInput) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:        in.Email,
		TenantID:     in.TenantID,
		Roles:        in.Roles,
		Permissions:  in.Permissions,
		DepartmentID: in.DepartmentID,
		TokenType:    TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.UserID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		},
	}
	return m.sign(claims)
}

// SignRefresh mints a signed refresh token carrying jti as its correlation
// key to the stored RefreshTokenRecord.
func (m *Manager) SignRefresh(userID, tenantID, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID:  tenantID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.cfg.Issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
		},
	}
	return m.sign(claims)
}

func (m *Manager) sign(claims Claims) (string, error) {
	if m.signKey == nil {
		return "", errNoSigningKey
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// Decode verifies the signature and registered claims and returns the
// payload. It fails closed: wrong algorithm, bad signature, or a past
// expiry each yield an error matching ErrInvalidToken.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
