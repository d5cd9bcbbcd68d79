// Package session holds the authenticated backend session used by the client.
//
// The backend issues JWT access tokens. The client never verifies the
// signature (it does not hold the key); it only reads the claims to learn
// the user id and the expiry so that obviously dead sessions are rejected
// before a request is sent.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session errors.
var (
	// ErrInvalid indicates a missing token or user id.
	ErrInvalid = errors.New("invalid session")
	// ErrExpired indicates the access token expired or was rejected by the backend.
	ErrExpired = errors.New("session expired")
)

// expirySkew treats tokens about to expire as already expired.
const expirySkew = 30 * time.Second

// Session is an explicit, immutable authenticated session.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Claims are the access-token claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the backend user id when the token carries it explicitly.
	UserID claimID `json:"uid,omitempty"`
	// ID is the legacy user id claim.
	ID claimID `json:"id,omitempty"`
}

// claimID accepts both numeric and string ids.
type claimID string

func (c *claimID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = claimID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = claimID(n.String())
	return nil
}

// New builds a session from a token and the user id returned at login.
// When the token is a JWT its claims fill in the expiry and, if userID is
// empty, the user id.
func New(token, userID string) (Session, error) {
	if token == "" {
		return Session{}, fmt.Errorf("%w: missing token", ErrInvalid)
	}

	s := Session{Token: token, UserID: userID}

	if claims, err := ParseClaims(token); err == nil {
		if claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
		if s.UserID == "" {
			s.UserID = claims.userID()
		}
	}

	if s.UserID == "" {
		return Session{}, fmt.Errorf("%w: missing user id", ErrInvalid)
	}
	return s, nil
}

// ParseClaims reads the claims of a JWT without verifying its signature.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing token claims: %w", err)
	}
	return claims, nil
}

func (c *Claims) userID() string {
	switch {
	case c.UserID != "":
		return string(c.UserID)
	case c.ID != "":
		return string(c.ID)
	default:
		return c.Subject
	}
}

// Validate checks the session can be used at now.
func (s Session) Validate(now time.Time) error {
	if s.Token == "" || s.UserID == "" {
		return ErrInvalid
	}
	if !s.ExpiresAt.IsZero() && !now.Add(expirySkew).Before(s.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// AuthorizationHeader returns the bearer header value.
func (s Session) AuthorizationHeader() string {
	return "Bearer " + s.Token
}

// NumericUserID returns the user id as an integer when the backend uses numeric ids.
func (s Session) NumericUserID() (int64, bool) {
	id, err := strconv.ParseInt(s.UserID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
