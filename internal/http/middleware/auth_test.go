package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/medquiz-backend/internal/platform/ctxutil"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func claimsFor(sub string, internal bool, exp time.Time) Claims {
	return Claims{
		Internal: internal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func newAuthRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/learner", am.RequireAuth(), func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.String(http.StatusOK, rd.LearnerID.String())
	})
	r.GET("/internal", am.RequireInternal(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	am := NewAuthMiddleware(logger.Nop(), testSecret, "")
	r := newAuthRouter(am)
	learner := uuid.New()
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "valid bearer", header: "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(learner.String(), false, future)), status: http.StatusOK},
		{name: "valid query token", query: signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(learner.String(), false, future)), status: http.StatusOK},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", jwt.SigningMethodHS256, claimsFor(learner.String(), false, future)), status: http.StatusUnauthorized},
		{name: "wrong algorithm", header: "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS384, claimsFor(learner.String(), false, future)), status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(learner.String(), false, time.Now().Add(-time.Minute))), status: http.StatusUnauthorized},
		{name: "subject not a uuid", header: "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor("alice", false, future)), status: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor("", false, future)), status: http.StatusForbidden},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			target := "/learner"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != learner.String() {
				t.Fatalf("learner id: got=%q want=%q", rec.Body.String(), learner.String())
			}
		})
	}
}

func TestRequireInternal(t *testing.T) {
	t.Parallel()
	am := NewAuthMiddleware(logger.Nop(), testSecret, "shared-token")
	r := newAuthRouter(am)
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{name: "shared token", headers: map[string]string{headerInternalToken: "shared-token"}, status: http.StatusNoContent},
		{name: "wrong shared token", headers: map[string]string{headerInternalToken: "nope"}, status: http.StatusUnauthorized},
		{name: "internal claim", headers: map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor("", true, future))}, status: http.StatusNoContent},
		{name: "learner token", headers: map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, claimsFor(uuid.NewString(), false, future))}, status: http.StatusForbidden},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/internal", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}
