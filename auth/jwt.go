// Package auth - caller identity carried by HS256 JWTs
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/alwitt/lexvault/errdefs"
	"github.com/golang-jwt/jwt/v5"
)

// Identity an authenticated caller
type Identity struct {
	// UserID the caller's account ID
	UserID string
}

// Claims JWT claims carrying the caller account
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Authenticator issues and verifies caller tokens
type Authenticator interface {
	/*
		Issue sign a token for an account

			@param userID string - the account ID
			@param ttl time.Duration - token validity
			@returns signed token
	*/
	Issue(userID string, ttl time.Duration) (string, error)

	/*
		Verify verify a token and extract the caller

			@param token string - the token, with or without a "Bearer " prefix
			@returns the caller, or errdefs.ErrUnauthenticated
	*/
	Verify(token string) (Identity, error)
}

type jwtAuthenticator struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

/*
NewJWTAuthenticator define a HS256 JWT authenticator

	@param secret []byte - signing secret
	@param issuer string - token issuer
	@param clock func() time.Time - time source, time.Now when nil
	@returns authenticator
*/
func NewJWTAuthenticator(
	secret []byte, issuer string, clock func() time.Time,
) (Authenticator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT signing secret must be at least 32 bytes")
	}
	if clock == nil {
		clock = time.Now
	}
	return &jwtAuthenticator{secret: secret, issuer: issuer, clock: clock}, nil
}

func (a *jwtAuthenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("can not issue token without account ID")
	}
	now := a.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token [%w]", err)
	}
	return signed, nil
}

func (a *jwtAuthenticator) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return Identity{}, errdefs.ErrUnauthenticated
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%s [%w]", err.Error(), errdefs.ErrUnauthenticated)
	}
	if !parsed.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return Identity{}, errdefs.ErrUnauthenticated
	}

	return Identity{UserID: claims.UserID}, nil
}
