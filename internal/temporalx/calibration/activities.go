package calibration

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/medquiz-backend/internal/services"
)

type Activities struct {
	Service services.CalibrationService
}

// RefreshItem refreshes one item. Missing items, bad input and integrity violations are not
// retried; storage errors are.
func (a *Activities) RefreshItem(ctx context.Context, itemID string) (ItemResult, error) {
	res, err := a.Service.RefreshItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, services.ErrItemNotFound) ||
			errors.Is(err, services.ErrInvalidParams) ||
			errors.Is(err, services.ErrCalibrationIntegrity) {
			return ItemResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "calibration_refresh", err)
		}
		return ItemResult{}, err
	}
	return ItemResult{
		ItemID:  res.ItemID,
		Status:  res.Status,
		Version: res.Version,
		Samples: res.Stats.Samples,
	}, nil
}
