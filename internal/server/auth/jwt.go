// Package auth implements the signed-token codec: HS256 signing and
// verification of the fixed claim set carried by access, refresh, and
// password-reset tokens. The codec is stateless; secrets and lifetimes
// come from the caller.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the fixed claim set embedded in every signed token. Unknown or
// missing fields are a verification failure, not a silent default.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
}

// Sign mints a signed token for userID whose embedded expiry is now+ttl.
// It returns the token string together with the claims that were embedded,
// so the caller can persist a record whose owner/type/expiry match the
// token exactly.
func Sign(userID string, tokenType models.TokenType, secret []byte, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes every mint unique even within one clock second
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: string(tokenType),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", nil, err
	}

	return tokenString, claims, nil
}

// Verify parses and verifies a token string against the given secret.
// It fails with common.ErrTokenExpired when the signature is valid but the
// embedded expiry has passed, and with common.ErrInvalidSignature for every
// other rejection (bad signature, malformed token, wrong algorithm, missing
// or unknown claim fields). Callers must not conflate the two: the expired
// case is a distinct audit event.
func Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidSignature
	}
	if !token.Valid {
		return nil, common.ErrInvalidSignature
	}

	if claims.UserID == "" || claims.ID == "" {
		return nil, common.ErrInvalidSignature
	}
	switch models.TokenType(claims.TokenType) {
	case models.TokenTypeAccess, models.TokenTypeRefresh, models.TokenTypeReset:
	default:
		return nil, common.ErrInvalidSignature
	}

	// The parser ignores claim fields it does not know; a strict re-decode
	// of the payload rejects tokens carrying anything beyond the fixed set.
	if err := checkClaimSet(tokenString); err != nil {
		return nil, common.ErrInvalidSignature
	}

	return claims, nil
}

// checkClaimSet re-decodes the payload segment of an already verified
// token and fails on any claim outside {jti, iat, exp, uid, typ}.
func checkClaimSet(tokenString string) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return errors.New("malformed token")
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return err
	}

	var known struct {
		ID        string      `json:"jti"`
		IssuedAt  json.Number `json:"iat"`
		ExpiresAt json.Number `json:"exp"`
		UserID    string      `json:"uid"`
		TokenType string      `json:"typ"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(&known)
}
