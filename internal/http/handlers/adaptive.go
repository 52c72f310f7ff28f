package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/medquiz-backend/internal/http/response"
	"github.com/yungbote/medquiz-backend/internal/platform/ctxutil"
	"github.com/yungbote/medquiz-backend/internal/services"
)

const (
	defaultNextItems = 10
	maxNextItems     = 100
)

type AdaptiveHandler struct {
	adaptive services.AdaptiveService
}

func NewAdaptiveHandler(adaptive services.AdaptiveService) *AdaptiveHandler {
	return &AdaptiveHandler{adaptive: adaptive}
}

type submitAnswerRequest struct {
	ItemID string `json:"item_id"`
	// Correct is null for an ungraded answer.
	Correct    *bool      `json:"correct"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// POST /api/courses/:course_id/answers
func (h *AdaptiveHandler) SubmitAnswer(c *gin.Context) {
	learnerID, ok := learnerFromContext(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "course_id")
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.AnswerInput{
		LearnerID: learnerID,
		CourseID:  courseID,
		ItemID:    strings.TrimSpace(req.ItemID),
		Correct:   req.Correct,
	}
	if req.AnsweredAt != nil {
		in.AnsweredAt = req.AnsweredAt.UTC()
	}
	res, err := h.adaptive.SubmitAnswer(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

// GET /api/courses/:course_id/next-items?limit=
func (h *AdaptiveHandler) NextItems(c *gin.Context) {
	learnerID, ok := learnerFromContext(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "course_id")
	if !ok {
		return
	}
	limit := defaultNextItems
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errInvalid("limit must be a positive integer"))
			return
		}
		if n > maxNextItems {
			n = maxNextItems
		}
		limit = n
	}
	rec, err := h.adaptive.NextItems(c.Request.Context(), learnerID, courseID, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recommendation": rec})
}

type recordExposureRequest struct {
	SeenAt *time.Time `json:"seen_at,omitempty"`
}

// POST /api/items/:item_id/exposures
func (h *AdaptiveHandler) RecordExposure(c *gin.Context) {
	learnerID, ok := learnerFromContext(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("item_id"))
	var req recordExposureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	var at time.Time
	if req.SeenAt != nil {
		at = req.SeenAt.UTC()
	}
	if err := h.adaptive.RecordExposure(c.Request.Context(), learnerID, itemID, at); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/courses/:course_id/mastery
func (h *AdaptiveHandler) GetMastery(c *gin.Context) {
	learnerID, ok := learnerFromContext(c)
	if !ok {
		return
	}
	courseID, ok := uuidParam(c, "course_id")
	if !ok {
		return
	}
	summary, err := h.adaptive.GetMastery(c.Request.Context(), learnerID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"mastery": summary})
}

func learnerFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errInvalid("missing learner identity"))
		return uuid.Nil, false
	}
	return rd.LearnerID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, errInvalid("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
