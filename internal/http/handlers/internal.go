package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medquiz-backend/internal/http/response"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/config"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
	"github.com/yungbote/medquiz-backend/internal/services"
)

// InternalHandler serves course setup and calibration routes for other backend services.
type InternalHandler struct {
	setup       services.CourseSetupService
	calibration services.CalibrationService
}

func NewInternalHandler(setup services.CourseSetupService, calibration services.CalibrationService) *InternalHandler {
	return &InternalHandler{setup: setup, calibration: calibration}
}

type configureCourseRequest struct {
	BKT    *config.ParamSet  `json:"bkt"`
	Policy *selection.Config `json:"policy,omitempty"`
}

// PUT /api/internal/courses/:course_id/config
func (h *InternalHandler) ConfigureCourse(c *gin.Context) {
	courseID, ok := uuidParam(c, "course_id")
	if !ok {
		return
	}
	var req configureCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	cfg, err := h.setup.ConfigureCourse(c.Request.Context(), services.CourseSetup{
		CourseID: courseID,
		BKT:      req.BKT,
		Policy:   req.Policy,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"config": cfg})
}

// PUT /api/internal/courses/:course_id/kcs/:kc_id/params
func (h *InternalHandler) ConfigureKC(c *gin.Context) {
	courseID, ok := uuidParam(c, "course_id")
	if !ok {
		return
	}
	kcID, ok := uuidParam(c, "kc_id")
	if !ok {
		return
	}
	var params config.ParamSet
	if err := c.ShouldBindJSON(&params); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	row, err := h.setup.ConfigureKC(c.Request.Context(), courseID, kcID, &params)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"params": row})
}

type syncItemsRequest struct {
	Items []services.ItemInput `json:"items"`
}

// POST /api/internal/items/sync
func (h *InternalHandler) SyncItems(c *gin.Context) {
	var req syncItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.setup.SyncItems(c.Request.Context(), req.Items)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sync": res})
}

type refreshRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// POST /api/internal/calibrations/refresh
func (h *InternalHandler) RefreshCalibrations(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	res, err := h.calibration.RequestRefresh(c.Request.Context(), req.ItemIDs)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	// A workflow id means the refresh was handed off and has not run yet.
	if res.WorkflowID != "" {
		response.RespondAccepted(c, gin.H{"refresh": res})
		return
	}
	response.RespondOK(c, gin.H{"refresh": res})
}

// GET /api/internal/items/:item_id/calibrations
func (h *InternalHandler) CalibrationHistory(c *gin.Context) {
	itemID := strings.TrimSpace(c.Param("item_id"))
	rows, err := h.calibration.History(c.Request.Context(), itemID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if len(rows) == 0 {
		response.RespondError(c, http.StatusNotFound, "item_not_found", errors.New("no calibration history for "+itemID))
		return
	}
	response.RespondOK(c, gin.H{"item_id": itemID, "calibrations": rows})
}

func errInvalid(msg string) error { return errors.New(msg) }
