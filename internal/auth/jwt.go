package auth

// TOKEN FLOW OVERVIEW:
// 1. POST /api/auth/login verifies the password and calls Issue(user)
// 2. The client stores the returned token and sends it back on every call:
//    Authorization: Bearer <token>
// 3. RequireAuth calls Validate(token) and puts the Identity in the context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless: the server doesn't store session data.
// Everything needed (user id, email, expiry) is inside the signed token, and
// the signature means nobody can change it without the secret key.
//
// JWT STRUCTURE (three base64url-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type -> {"alg":"HS256","typ":"JWT"}
//	- Payload: claims -> {"sub":"42","email":"alice@example.com","iss":...,"aud":[...],"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// There is no refresh token and no revocation list: a token is good until
// its exp claim passes.

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/todo-server/internal/config"
	"github.com/sakif/todo-server/internal/model"
)

// MinSecretBytes is the shortest accepted HS256 signing key.
const MinSecretBytes = 32

// ErrInvalidToken is returned by Validate for every rejected token.
// Expired, malformed, mis-signed and wrong-audience tokens all look the same
// to the caller.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

// TokenValidator turns a presented token back into an Identity.
type TokenValidator interface {
	Validate(token string) (*Identity, error)
}

// Identity is the caller decoded from a valid access token.
type Identity struct {
	UserID    int64
	Email     string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret plus the issuer/audience pair that every token
// must carry. The same settings sign and verify, so a single instance is
// shared by the login path and the RequireAuth middleware.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

var (
	_ TokenIssuer    = (*TokenService)(nil)
	_ TokenValidator = (*TokenService)(nil)
)

// Option customises a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now. Issue stamps iat/exp with it and Validate
// checks them against it.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService from the JWT settings.
// Every field is required; a bad value is a startup error.
// Example: JWT_SECRET_KEY=$(openssl rand -hex 32)
func NewTokenService(settings config.JWTSettings, opts ...Option) (*TokenService, error) {
	if len(settings.SecretKey) < MinSecretBytes {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d bytes", MinSecretBytes)
	}
	if settings.Issuer == "" {
		return nil, errors.New("auth: JWT issuer is required")
	}
	if settings.Audience == "" {
		return nil, errors.New("auth: JWT audience is required")
	}
	if settings.ExpirationHours <= 0 {
		return nil, fmt.Errorf("auth: JWT expiration hours must be positive, got %d", settings.ExpirationHours)
	}

	s := &TokenService{
		secret:   []byte(settings.SecretKey),
		issuer:   settings.Issuer,
		audience: settings.Audience,
		ttl:      time.Duration(settings.ExpirationHours) * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// ALGORITHM CONFUSION ATTACK:
	// Without pinning the method, a token with "alg":"none" (or an RSA
	// public key used as an HMAC secret) could slip through.
	// WithValidMethods rejects anything that isn't HS256.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// claims is the JWT payload: the registered claims plus the user's email.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue creates and signs an access token for user.
//
// iat is the current time and exp is iat plus the configured lifetime.
// Each token gets a random jti so two tokens minted in the same second
// still differ.
func (s *TokenService) Issue(user *model.User) (string, error) {
	if user == nil || user.ID <= 0 {
		return "", errors.New("auth: cannot issue a token without a persisted user")
	}

	now := s.now()
	c := claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        xid.New().String(),
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the compact JWT string.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string.
//
// VALIDATION CHECKS:
//   - Signature verifies with the configured secret
//   - Algorithm is HS256
//   - iss equals the configured issuer, aud contains the configured audience
//   - exp is present and still in the future, iat is not in the future
//   - sub is a positive user id
//
// The cause of a failure is dropped on purpose; every rejection is ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	c := &claims{}
	token, err := s.parser.ParseWithClaims(tokenStr, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}
	if c.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:    userID,
		Email:     c.Email,
		Issuer:    c.Issuer,
		Audience:  s.audience,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
		TokenID:   c.ID,
	}, nil
}
