package middleware

import (
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"dasa-hub/internal/api/response"
	"dasa-hub/internal/model"
	jwtutil "dasa-hub/pkg/jwt"
)

const claimsContextKey = "claims"

type Claims = jwtutil.Claims

// Auth verifies access tokens issued by the account service. A nil public
// key rejects every token, so only anonymous reads work.
type Auth struct {
	publicKey *rsa.PublicKey
}

func NewAuth(publicKey *rsa.PublicKey) *Auth {
	return &Auth{publicKey: publicKey}
}

// Optional attaches claims when a valid token is present and otherwise lets
// the request through as anonymous.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); ok {
			c.Next()
			return
		}
		if claims, err := a.parse(c); err == nil {
			c.Set(claimsContextKey, claims)
		}
		c.Next()
	}
}

func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetClaims(c); ok {
			c.Next()
			return
		}

		claims, err := a.parse(c)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Fail(c, 401, response.ErrTokenExpired, "token expired")
			} else {
				response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			}
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func (a *Auth) parse(c *gin.Context) (*Claims, error) {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		return nil, errors.New("missing access token")
	}
	if a == nil || a.publicKey == nil {
		return nil, jwtutil.ErrPublicKeyMissing
	}

	claims, err := jwtutil.ParseAccessToken(tokenString, a.publicKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, errors.New("token without subject")
	}
	return claims, nil
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}

		claims, ok := GetClaims(c)
		if !ok {
			response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		for _, role := range roles {
			if strings.EqualFold(claims.Role, role) {
				c.Next()
				return
			}
		}

		response.Fail(c, 403, response.ErrForbidden, "forbidden")
		c.Abort()
	}
}

func GetClaims(c *gin.Context) (*Claims, bool) {
	val, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*Claims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}

// Viewer describes the caller; anonymous when no claims were attached.
func Viewer(c *gin.Context) model.Viewer {
	claims, ok := GetClaims(c)
	if !ok {
		return model.Viewer{}
	}
	return model.Viewer{UserID: claims.UserID, Role: claims.Role}
}

func tokenFromRequest(c *gin.Context) string {
	if cookieToken, err := c.Cookie("access_token"); err == nil && cookieToken != "" {
		return cookieToken
	}

	return bearerTokenFromRequest(c.GetHeader("Authorization"))
}

func bearerTokenFromRequest(header string) string {
	auth := strings.TrimSpace(header)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
