package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/platform/ctxutil"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

const headerInternalToken = "X-Internal-Token"

// Claims is the subset of an externally issued access token the engine reads.
type Claims struct {
	Internal bool `json:"internal,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log           *logger.Logger
	secret        []byte
	internalToken string
}

func NewAuthMiddleware(log *logger.Logger, secret, internalToken string) *AuthMiddleware {
	return &AuthMiddleware{
		log:           log.With("middleware", "AuthMiddleware"),
		secret:        []byte(secret),
		internalToken: strings.TrimSpace(internalToken),
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		rd, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if rd.LearnerID == uuid.Nil && !rd.Internal {
			abort(c, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequireInternal admits either the shared internal token or a bearer token carrying the internal claim.
func (am *AuthMiddleware) RequireInternal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.internalToken != "" {
			got := strings.TrimSpace(c.GetHeader(headerInternalToken))
			if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(am.internalToken)) == 1 {
				rd := &ctxutil.RequestData{Subject: "internal", Internal: true}
				c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
				c.Next()
				return
			}
		}
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		rd, err := am.parse(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		if !rd.Internal {
			abort(c, http.StatusForbidden, "forbidden", "internal access required")
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*ctxutil.RequestData, error) {
	if len(am.secret) == 0 {
		return nil, errors.New("token verification not configured")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	rd := &ctxutil.RequestData{Subject: claims.Subject, Internal: claims.Internal}
	if claims.Subject != "" {
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("invalid token subject: %w", err)
		}
		rd.LearnerID = id
	}
	return rd, nil
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"message": msg, "code": code},
	})
}

func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
