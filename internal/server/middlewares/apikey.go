package middlewares

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notepad/internal/resterror"
	"github.com/pkg/errors"
)

// API key roles.
const (
	RoleAnon    = "anon"
	RoleService = "service_role"
)

const (
	// APIKeyContextKey is the key to retrieve the API key token from echo.Context.
	APIKeyContextKey = "apikey"
	// Issuer is the issuer of the API keys.
	Issuer = "notepad"
)

// Claims are the claims of an API key.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// APIKey returns a middleware validating the JWT given in the `apikey` header or query parameter.
func APIKey(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  secret,
		ContextKey:  APIKeyContextKey,
		TokenLookup: "header:apikey,query:apikey",
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return resterror.NewWithCode(http.StatusUnauthorized, resterror.CodeUnauthorized, "Invalid API key").
				WithDetails(err.Error())
		},
	})
}

// Role returns a middleware ensuring the API key has one of the given roles.
func Role(roles ...string) echo.MiddlewareFunc {
	allowed := map[string]bool{}
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil || !allowed[claims.Role] {
				return resterror.NewWithCode(http.StatusUnauthorized, resterror.CodeUnauthorized, "Permission denied for this API key")
			}
			return next(c)
		}
	}
}

// CurrentClaims returns the claims of the validated API key.
func CurrentClaims(c echo.Context) *Claims {
	token, ok := c.Get(APIKeyContextKey).(*jwt.Token)
	if !ok {
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// SignAPIKey returns a new API key with the given role.
// A zero ttl returns a key that never expires.
func SignAPIKey(secret []byte, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return token, errors.Wrap(err, "could not sign API key")
}
