package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medquiz-backend/internal/platform/apierr"
)

func TestRespondErr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{name: "typed", err: apierr.NotFound("item_not_found", errors.New("item not found: q1")), status: http.StatusNotFound, code: "item_not_found", message: "item not found: q1"},
		{name: "wrapped typed", err: fmt.Errorf("outer: %w", apierr.Conflict("course_not_configured", errors.New("nope"))), status: http.StatusConflict, code: "course_not_configured", message: "nope"},
		{name: "zero status", err: &apierr.Error{Code: "odd"}, status: http.StatusInternalServerError, code: "odd", message: "odd"},
		{name: "untyped hides message", err: errors.New("pq: connection refused"), status: http.StatusInternalServerError, code: "internal_error", message: "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondErr(c, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.status)
			}
			var env ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != tc.code || env.Error.Message != tc.message {
				t.Fatalf("envelope: got=%+v want code=%q message=%q", env.Error, tc.code, tc.message)
			}
			if len(c.Errors) != 1 {
				t.Fatalf("expected the error on c.Errors, got %d", len(c.Errors))
			}
		})
	}
}
