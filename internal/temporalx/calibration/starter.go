package calibration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// Starter starts refresh workflows on a task queue.
type Starter struct {
	Client    temporalsdkclient.Client
	TaskQueue string
}

func (s *Starter) StartCalibrationRefresh(ctx context.Context, itemIDs []string) (string, string, error) {
	if s == nil || s.Client == nil {
		return "", "", fmt.Errorf("calibration starter: temporal client not configured")
	}
	run, err := s.Client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        "calibration-refresh-" + uuid.NewString(),
		TaskQueue: s.TaskQueue,
	}, WorkflowName, Input{ItemIDs: itemIDs})
	if err != nil {
		return "", "", fmt.Errorf("start calibration refresh: %w", err)
	}
	return run.GetID(), run.GetRunID(), nil
}
