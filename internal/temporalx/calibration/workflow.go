package calibration

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/medquiz-backend/internal/services"
)

// Workflow refreshes the requested items in small concurrent batches. A failing item is
// recorded in the summary and does not fail the workflow.
func Workflow(ctx workflow.Context, in Input) (Summary, error) {
	summary := Summary{}
	if in.Summary != nil {
		summary = *in.Summary
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})
	log := workflow.GetLogger(ctx)

	ids := in.ItemIDs
	var rest []string
	if len(ids) > itemsPerRun {
		ids, rest = ids[:itemsPerRun], ids[itemsPerRun:]
	}

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		futures := make([]workflow.Future, 0, end-start)
		for _, id := range ids[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, ActivityRefreshItem, id))
		}
		for i, f := range futures {
			var r ItemResult
			if err := f.Get(ctx, &r); err != nil {
				id := ids[start+i]
				log.Warn("item refresh failed", "item_id", id, "error", err)
				r = ItemResult{ItemID: id, Status: services.RefreshFailed, Error: err.Error()}
			}
			summary.add(r)
		}
	}

	if len(rest) > 0 {
		return summary, workflow.NewContinueAsNewError(ctx, Workflow, Input{ItemIDs: rest, Summary: &summary})
	}
	log.Info("calibration refresh finished", "updated", summary.Updated, "skipped", summary.Skipped, "failed", len(summary.Failed))
	return summary, nil
}
