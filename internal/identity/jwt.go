// Package identity verifies already-issued peer identity tokens.
//
// Token issuance is an external collaborator's responsibility (spec.md
// §1: "Authentication token issuance; the core consumes an already-
// verified peer identity"). This package only validates.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any malformed, expired, or unsigned token.
var ErrInvalidToken = errors.New("invalid token")

// Claims holds the JWT claims a peer identity token must carry.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// PeerIdentity is the verified identity handed to the signaling layer.
// The signaling connection id (spec.md §3, Peer.id) is assigned
// separately by the connection transport, not carried in the token.
type PeerIdentity struct {
	UserID uuid.UUID
	Role   string
}

// Verifier validates an opaque bearer token into a PeerIdentity.
// Defined as an interface so internal/signaling never depends on the
// concrete token scheme.
type Verifier interface {
	Verify(token string) (PeerIdentity, error)
}

// JWTVerifier validates HMAC-signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a JWT-backed Verifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates a JWT, returning the peer identity it carries.
func (v *JWTVerifier) Verify(tokenString string) (PeerIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return PeerIdentity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return PeerIdentity{}, ErrInvalidToken
	}
	return PeerIdentity{UserID: claims.UserID, Role: claims.Role}, nil
}
