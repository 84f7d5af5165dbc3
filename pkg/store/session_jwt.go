package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer = "keepnotes"
	defaultJWTTTL    = 24 * time.Hour
	minJWTSecretLen  = 16
)

var defaultJWTLeeway = 30 * time.Second

// JWTOptions configures JWT issuance and claim validation.
type JWTOptions struct {
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and validates HS256 bearer tokens carrying {sub, email}.
type JWTIssuer struct {
	secret  []byte
	revoker TokenRevoker

	issuer string
	ttl    time.Duration
	leeway time.Duration
}

var _ TokenIssuer = (*JWTIssuer)(nil)

// NewJWTIssuer builds an HS256 issuer. revoker may be nil, in which case
// Revoke is a no-op.
func NewJWTIssuer(secret string, revoker TokenRevoker, opts JWTOptions) (*JWTIssuer, error) {
	if len(strings.TrimSpace(secret)) < minJWTSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minJWTSecretLen)
	}
	opts = normalizeJWTOptions(opts)
	return &JWTIssuer{
		secret:  []byte(secret),
		revoker: revoker,
		issuer:  opts.Issuer,
		ttl:     opts.TTL,
		leeway:  opts.Leeway,
	}, nil
}

// Sign issues a token for the account.
func (s *JWTIssuer) Sign(subject uint, email string) (string, error) {
	if subject == 0 {
		return "", errors.New("token subject required")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(subject), 10),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates signature, registered claims and revocation state.
func (s *JWTIssuer) Verify(token string) (TokenClaims, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return TokenClaims{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return TokenClaims{}, err
		}
		if revoked {
			return TokenClaims{}, errors.New("token revoked")
		}
	}
	subject, err := strconv.ParseUint(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || subject == 0 {
		return TokenClaims{}, errors.New("token subject invalid")
	}
	out := TokenClaims{
		Subject: uint(subject),
		Email:   claims.Email,
		ID:      claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *JWTIssuer) Revoke(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *JWTIssuer) parseAndVerify(token string) (sessionClaims, error) {
	claims := sessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultJWTTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
