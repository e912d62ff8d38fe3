package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretRequired       = errors.New("security: jwt secret is required")
	ErrUnsupportedAlgorithm = errors.New("security: unsupported jwt algorithm")
	ErrTTLInvalid           = errors.New("security: token ttl must be positive")
)

// JWTIssuer issues HMAC-signed access tokens carrying the user email as subject.
type JWTIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
}

func NewJWTIssuer(secret, algorithm string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		return nil, ErrTTLInvalid
	}
	method, err := hmacMethod(algorithm)
	if err != nil {
		return nil, err
	}
	return &JWTIssuer{secret: []byte(secret), method: method, ttl: ttl}, nil
}

func (j *JWTIssuer) Issue(subject string, now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	signed, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// Subject verifies signature, algorithm and expiry and returns the sub claim.
func (j *JWTIssuer) Subject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{j.method.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("security: parse token: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("security: token invalid")
	}
	return claims.Subject, nil
}

func hmacMethod(algorithm string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// SupportedAlgorithm reports whether algorithm can sign tokens.
func SupportedAlgorithm(algorithm string) bool {
	_, err := hmacMethod(algorithm)
	return err == nil
}
