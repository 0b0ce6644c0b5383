package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Config controls issuance lifetimes and validation strictness.
type Config struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	Keys         KeySource
	Now          func() time.Time
}

// Manager issues and verifies signed access and refresh tokens.
//
// Manager holds no mutable state of its own; key rotation happens by the
// KeySource handing out a new [KeyRing].
type Manager struct {
	config Config
}

// Profile carries the optional identity claims embedded in access tokens.
type Profile struct {
	Email       string
	Nickname    string
	Username    string
	Memberships map[string]string
}

// AccessClaims is the access-token payload.
type AccessClaims struct {
	Roles       []string          `json:"roles"`
	Email       string            `json:"email"`
	Nickname    string            `json:"nickname,omitempty"`
	Username    string            `json:"username,omitempty"`
	Memberships map[string]string `json:"memberships,omitempty"`
	TokenUse    string            `json:"token_use"`
	jwt.RegisteredClaims
}

// RefreshClaims is the minimal refresh-token payload.
type RefreshClaims struct {
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// Remaining returns exp - now clamped at zero.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid refresh TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Keys == nil || cfg.Keys.KeyRing() == nil {
		return nil, ErrNoKeyRing
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// IssueAccess signs an access token for userID with the current key.
// roles must be non-empty.
func (m *Manager) IssueAccess(userID string, roles []string, profile Profile) (string, error) {
	if len(roles) == 0 {
		return "", ErrNoRolesAssigned
	}

	now := m.config.Now()
	claims := AccessClaims{
		Roles:            slices.Clone(roles),
		Email:            profile.Email,
		Nickname:         profile.Nickname,
		Username:         profile.Username,
		Memberships:      profile.Memberships,
		TokenUse:         tokenUseAccess,
		RegisteredClaims: m.registered(userID, now, m.config.AccessTTL),
	}

	return m.sign(claims, now)
}

// IssueRefresh signs a minimal refresh token for userID with the current key.
func (m *Manager) IssueRefresh(userID string) (string, error) {
	now := m.config.Now()
	claims := RefreshClaims{
		TokenUse:         tokenUseRefresh,
		RegisteredClaims: m.registered(userID, now, m.config.RefreshTTL),
	}

	return m.sign(claims, now)
}

// Validate verifies an access token and returns its claims.
func (m *Manager) Validate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, false); err != nil {
		return nil, err
	}
	if err := m.checkCommon(claims.TokenUse, tokenUseAccess, claims.Subject, claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token and returns its claims.
func (m *Manager) ValidateRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, false); err != nil {
		return nil, err
	}
	if err := m.checkCommon(claims.TokenUse, tokenUseRefresh, claims.Subject, claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseAllowExpired verifies an access token like [Manager.Validate] but
// still returns the claims of a token that is only past its expiry.
func (m *Manager) ParseAllowExpired(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, true); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if m.config.Audience != "" && !slices.Contains(claims.Audience, m.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrTokenInvalid)
	}
	if err := m.checkCommon(claims.TokenUse, tokenUseAccess, claims.Subject, claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// RemainingLifetime returns how long tokenStr has left, clamped at zero.
// Expired tokens report zero rather than an error.
func (m *Manager) RemainingLifetime(tokenStr string) (time.Duration, error) {
	claims, err := m.ParseAllowExpired(tokenStr)
	if err != nil {
		return 0, err
	}
	return claims.Remaining(m.config.Now()), nil
}

func (m *Manager) registered(userID string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

func (m *Manager) sign(claims jwt.Claims, now time.Time) (string, error) {
	ring := m.config.Keys.KeyRing()
	if ring == nil {
		return "", ErrNoKeyRing
	}

	key := ring.Current()
	if !key.IsActive(now) {
		if key.IsExpired(now) {
			return "", &KeyError{KeyID: key.ID, Err: ErrKeyExpired}
		}
		return "", &KeyError{KeyID: key.ID, Err: ErrKeyNotActive}
	}

	signKey, err := ring.signKey(key)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(ring.jwtMethod(), claims)
	token.Header["kid"] = key.ID

	return token.SignedString(signKey)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, allowExpired bool) error {
	ring := m.config.Keys.KeyRing()
	if ring == nil {
		return ErrNoKeyRing
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ring.jwtMethod().Alg()}),
		jwt.WithTimeFunc(m.config.Now),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		options = append(options, jwt.WithExpirationRequired())
		if m.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(m.config.Leeway))
		}
		if m.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(m.config.Issuer))
		}
		if m.config.Audience != "" {
			options = append(options, jwt.WithAudience(m.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			kid = ring.CurrentID()
		}
		key, ok := ring.Lookup(kid)
		if !ok {
			return nil, &KeyError{KeyID: kid, Err: ErrKeyNotFound}
		}
		if key.IsExpired(m.config.Now()) {
			return nil, &KeyError{KeyID: kid, Err: ErrKeyExpired}
		}
		return ring.verifyKey(key)
	})
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}

func (m *Manager) checkCommon(gotUse, wantUse, subject string, iat *jwt.NumericDate) error {
	if gotUse != wantUse {
		return fmt.Errorf("%w: unexpected token use %q", ErrTokenInvalid, gotUse)
	}
	if subject == "" {
		return fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if iat != nil && m.config.MaxFutureIAT > 0 {
		if iat.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
			return fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}
	return nil
}
