package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/staffhub/staffhub/shared/domain"
	internal_errors "github.com/staffhub/staffhub/shared/errors"
	"github.com/staffhub/staffhub/shared/logger"
)

// HashedEmailClaim names the caller identity inside a token.
const HashedEmailClaim = "hashed_email"

const issuer = "staffhub"

// Claims is the access token payload.
type Claims struct {
	HashedEmail string `json:"hashed_email"`
	jwt.RegisteredClaims
}

type JwtService interface {
	NewToken(id domain.HashedEmail) (string, error)
	DecodeToken(jwtStr string) (*jwt.Token, error)
}

type Jwt struct {
	secretKey []byte
	ttl       time.Duration
	parser    *jwt.Parser
}

func New(secretKey string, ttl time.Duration) JwtService {
	return &Jwt{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func (j *Jwt) NewToken(id domain.HashedEmail) (string, error) {
	now := time.Now()
	claims := Claims{
		HashedEmail: id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		logger.Log.Error("failed to sign token", "component", "jwt", "error", err)
		return "", errors.New("Can't create token")
	}
	return signed, nil
}

// DecodeToken verifies signature, algorithm, issuer and expiry. Every
// failure is reported as 401.
func (j *Jwt) DecodeToken(jwtStr string) (*jwt.Token, error) {
	token, err := j.parser.ParseWithClaims(jwtStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, unauthorized("Access token expired")
	case err != nil:
		logger.Log.Debug("token rejected", "component", "jwt", "error", err)
		return nil, unauthorized("Invalid token signature")
	case !token.Valid:
		return nil, unauthorized("Invalid access token")
	}
	return token, nil
}

// HashedEmail extracts the caller identity from a decoded token.
func HashedEmail(token *jwt.Token) (domain.HashedEmail, error) {
	var raw string
	switch c := token.Claims.(type) {
	case *Claims:
		raw = c.HashedEmail
	case jwt.MapClaims:
		s, ok := c[HashedEmailClaim].(string)
		if !ok {
			return "", fmt.Errorf("missing %s claim", HashedEmailClaim)
		}
		raw = s
	default:
		return "", errors.New("unexpected claims type")
	}
	return domain.ParseHashedEmail(raw)
}

func unauthorized(msg string) error {
	return &internal_errors.ErrorWithStatusCode{Message: msg, StatusCode: 401}
}
