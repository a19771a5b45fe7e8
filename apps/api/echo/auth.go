package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
)

const (
	contextTokenKey   = "userToken"
	contextContactKey = "contact"
	audience          = "Madrasa"
)

// Claims represents the authorization claims transmitted via a JWT. Subject is the contact ID.
type Claims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

func NewClaims(c contact.Contact, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   c.ID,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name: c.Name,
		Role: c.Role.String(),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secret []byte, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(secret []byte, auth string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(auth, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected jwt signing method %q", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

// jwtMiddleware stores the parsed *jwt.Token of the request under contextTokenKey.
func jwtMiddleware(secret []byte) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		ContextKey: contextTokenKey,
		ParseTokenFunc: func(auth string, _ echo.Context) (interface{}, error) {
			return parseToken(secret, auth)
		},
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextContact resolves the authenticated contact once per request.
func getContextContact(ctx echo.Context, svc *contact.Service) (contact.Contact, error) {
	if c, ok := ctx.Get(contextContactKey).(contact.Contact); ok {
		return c, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	c, err := svc.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == contact.ErrNotFound {
			return contact.Contact{}, errUnknownContact
		}
		return contact.Contact{}, errors.Wrap(err, "finding contact by ID")
	}
	ctx.Set(contextContactKey, c)
	return c, nil
}

// contactMiddleware rejects tokens whose subject is no longer in the directory.
func contactMiddleware(svc *contact.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextContact(ctx, svc); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
