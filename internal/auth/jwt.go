package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSecret = errors.New("jwt signing secret is not configured")

type Subject struct {
	ID string `json:"id"`
}

// Claims keeps the {"user":{"id":...}} payload clients already decode,
// and mirrors the id into the registered "sub" claim.
type Claims struct {
	User Subject `json:"user"`
	jwt.RegisteredClaims
}

// Manager signs and parses bearer tokens with a process-wide HS256 secret.
// Tokens carry no expiry.
type Manager struct {
	secret []byte
	now    func() time.Time
}

func NewManager(secret string) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	return &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

func (m *Manager) Issue(subjectID string) (string, error) {
	claims := Claims{
		User: Subject{ID: subjectID},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subjectID,
			IssuedAt: jwt.NewNumericDate(m.now().UTC()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.User.ID == "" {
		return nil, errors.New("missing subject")
	}

	return claims, nil
}
