package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	"github.com/yungbote/medquiz-backend/internal/platform/apierr"
)

var (
	ErrCourseNotConfigured = errors.New("course is not configured for adaptive delivery")
	ErrItemNotFound        = errors.New("item not found")
	ErrInvalidParams       = errors.New("invalid parameters")
	// ErrCalibrationIntegrity is fatal: an item has history but not exactly one latest calibration.
	ErrCalibrationIntegrity = repos.ErrCalibrationIntegrity
)

func invalidParams(format string, args ...any) error {
	return apierr.BadRequest("invalid_params", fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...)))
}

func courseNotConfigured(courseID fmt.Stringer) error {
	return apierr.New(http.StatusConflict, "course_not_configured", fmt.Errorf("%w: %s", ErrCourseNotConfigured, courseID))
}

func itemNotFound(itemID string) error {
	return apierr.NotFound("item_not_found", fmt.Errorf("%w: %s", ErrItemNotFound, itemID))
}

func integrityError(err error) error {
	return apierr.Internal("calibration_integrity", err)
}
