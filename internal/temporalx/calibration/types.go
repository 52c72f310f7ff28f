// Package calibration runs item calibration refreshes as a Temporal workflow.
package calibration

import "github.com/yungbote/medquiz-backend/internal/services"

const (
	WorkflowName        = "calibration_refresh"
	ActivityRefreshItem = "calibration_refresh_item"

	// itemsPerRun bounds one run's history; the rest continue as new.
	itemsPerRun = 500
	batchSize   = 8
)

type Input struct {
	ItemIDs []string `json:"item_ids"`
	// Carried across continue-as-new so the final summary covers the whole request.
	Summary *Summary `json:"summary,omitempty"`
}

type ItemResult struct {
	ItemID  string `json:"item_id"`
	Status  string `json:"status"`
	Version int    `json:"version,omitempty"`
	Samples int    `json:"samples"`
	Error   string `json:"error,omitempty"`
}

type Summary struct {
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed,omitempty"`
}

func (s *Summary) add(r ItemResult) {
	switch r.Status {
	case services.RefreshUpdated:
		s.Updated++
	case services.RefreshSkipped:
		s.Skipped++
	default:
		s.Failed = append(s.Failed, r.ItemID)
	}
}
