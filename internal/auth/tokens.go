package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for every verification failure.
// The underlying cause is not exposed.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies stateless HS256 session tokens. It never
// consults the revocation ledger.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(userID, email string) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	tokenID := uuid.NewString()

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
