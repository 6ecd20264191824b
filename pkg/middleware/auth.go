package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zonelab/geozone/pkg/response"
)

const (
	// UserIDKey is the context key for the authenticated user ID
	UserIDKey = "user_id"
	// UserRolesKey is the context key for the authenticated role set
	UserRolesKey = "user_roles"
)

// JWTAuth validates the Bearer token issued by the identity system and puts
// the verified user ID and roles into the request context. Tokens are
// HS256-signed; the "sub" claim carries the user ID and "roles" the role
// list. A non-empty issuer additionally pins the "iss" claim.
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	var opts []jwt.ParserOption
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header is required")
			c.Abort()
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			response.Unauthorized(c, "Authorization header must be a Bearer token")
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, opts...)
		if err != nil || !token.Valid {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Unauthorized(c, "Invalid token claims")
			c.Abort()
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			response.Unauthorized(c, "Token subject is missing")
			c.Abort()
			return
		}

		var roles []string
		if raw, ok := claims["roles"].([]interface{}); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					roles = append(roles, s)
				}
			}
		}

		c.Set(UserIDKey, userID)
		c.Set(UserRolesKey, roles)
		c.Next()
	}
}

// GetUserID returns the authenticated user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// GetRoles returns the authenticated role set from context
func GetRoles(c *gin.Context) []string {
	if v, exists := c.Get(UserRolesKey); exists {
		if roles, ok := v.([]string); ok {
			return roles
		}
	}
	return nil
}

// RequireRole aborts with 403 unless the authenticated identity carries the
// role. Must run after JWTAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range GetRoles(c) {
			if r == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "Insufficient role")
		c.Abort()
	}
}
