// Package auth implements the token-verification contract consumed by the
// gateway. Login and token issuance belong to the platform's auth service —
// this package only verifies RS256 access tokens against its public key.
//
// Verification failure is a soft failure by design: the gateway downgrades an
// invalid or missing token to guest capability instead of rejecting the
// connection, since most rooms are public.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// tokenDuration bounds tokens issued by a generated-key Verifier.
	// Only used in development and tests — production tokens come from the
	// auth service with its own TTL policy.
	tokenDuration = 15 * time.Minute

	rsaKeyBits = 2048
)

// Verification errors. Callers distinguish expiry from tampering with
// errors.Is; the gateway treats both as a downgrade to guest.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims holds the custom JWT claims embedded in every access token.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the UUID of the authenticated user.
	UserID string `json:"uid"`

	// Role is the user's role at token issuance time.
	Role string `json:"role"`
}

// Privileged reports whether the claims grant access to privileged rooms.
func (c *Claims) Privileged() bool {
	return c.Role == "admin" || c.Role == "operator"
}

// Verifier validates RS256 access tokens. It holds only the public key in
// the verify-only configuration; the private key is present only when the
// key pair was generated locally.
type Verifier struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewVerifierFromFile loads a PEM-encoded PKIX public key from disk.
// Use this in production where the auth service's public key is mounted as a
// secret.
func NewVerifierFromFile(publicKeyPath, issuer string) (*Verifier, error) {
	pubBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: reading public key file: %w", err)
	}

	block, _ := pem.Decode(pubBytes)
	if block == nil {
		return nil, errors.New("auth: failed to decode public key PEM block")
	}

	pubInterface, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing public key: %w", err)
	}

	publicKey, ok := pubInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not an RSA key")
	}

	return &Verifier{publicKey: publicKey, issuer: issuer}, nil
}

// NewVerifierGenerated creates a Verifier with a freshly generated RSA key
// pair. Tokens it issues are invalidated on restart — suitable for
// development, demos and tests, where IssueToken provides the counterpart.
func NewVerifierGenerated(issuer string) (*Verifier, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("auth: generating RSA key pair: %w", err)
	}

	return &Verifier{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
	}, nil
}

// IssueToken creates a signed RS256 JWT for the given user. Only available
// when the Verifier holds a generated key pair.
func (v *Verifier) IssueToken(userID, role string) (string, error) {
	if v.privateKey == nil {
		return "", errors.New("auth: verifier has no private key, cannot issue tokens")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			ID:        uuid.NewString(),
		},
		UserID: userID,
		Role:   role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(v.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a JWT string. Returns the embedded Claims on
// success, ErrTokenExpired or ErrTokenInvalid on failure.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			// Reject tokens signed with anything other than RS256.
			// This prevents the "alg:none" and HMAC confusion attacks.
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
			}
			return v.publicKey, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
