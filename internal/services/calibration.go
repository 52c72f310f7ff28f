package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/medquiz-backend/internal/data/repos"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/irt"
	"github.com/yungbote/medquiz-backend/internal/observability"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

const (
	RefreshUpdated = "updated"
	RefreshSkipped = "skipped"
	RefreshFailed  = "error"
)

type RefreshResult struct {
	ItemID  string         `json:"item_id"`
	Status  string         `json:"status"`
	Version int            `json:"version,omitempty"`
	Params  irt.ItemParams `json:"params"`
	Stats   irt.FitStats   `json:"stats"`
	Error   string         `json:"error,omitempty"`
}

type RefreshRequest struct {
	// WorkflowID is set when the refresh was handed to the workflow engine.
	WorkflowID string           `json:"workflow_id,omitempty"`
	RunID      string           `json:"run_id,omitempty"`
	ItemIDs    []string         `json:"item_ids"`
	Results    []*RefreshResult `json:"results,omitempty"`
}

// CalibrationStarter hands a refresh to an asynchronous runner.
type CalibrationStarter interface {
	StartCalibrationRefresh(ctx context.Context, itemIDs []string) (workflowID, runID string, err error)
}

type CalibrationService interface {
	RefreshItem(ctx context.Context, itemID string) (*RefreshResult, error)
	RefreshItems(ctx context.Context, itemIDs []string) ([]*RefreshResult, error)
	// RequestRefresh refreshes itemIDs, or every item answered within the lookback window
	// when itemIDs is empty. It runs asynchronously when a starter is configured.
	RequestRefresh(ctx context.Context, itemIDs []string) (*RefreshRequest, error)
	History(ctx context.Context, itemID string) ([]*types.ItemCalibration, error)
}

type CalibrationOptions struct {
	Calibrator   irt.Calibrator
	MaxResponses int
	Concurrency  int
	Lookback     time.Duration
}

type calibrationService struct {
	log     *logger.Logger
	repos   repos.Set
	metrics *observability.Metrics
	starter CalibrationStarter
	opts    CalibrationOptions
}

func NewCalibrationService(baseLog *logger.Logger, set repos.Set, metrics *observability.Metrics, starter CalibrationStarter, opts CalibrationOptions) CalibrationService {
	if opts.MaxResponses <= 0 {
		opts.MaxResponses = 2000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	return &calibrationService{
		log:     baseLog.With("service", "CalibrationService"),
		repos:   set,
		metrics: metrics,
		starter: starter,
		opts:    opts,
	}
}

// RefreshItem refits the item from its logged responses and appends the result as the new
// latest version. Items below the calibrator's sample minimum are skipped unchanged.
func (s *calibrationService) RefreshItem(ctx context.Context, itemID string) (*RefreshResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "CalibrationService.RefreshItem", trace.WithAttributes(
		attribute.String("item_id", itemID),
	))
	defer span.End()

	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, invalidParams("missing item_id")
	}
	dbc := dbctx.Context{Ctx: ctx}
	item, err := s.repos.Item.Get(dbc, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, itemNotFound(itemID)
	}

	latest, err := s.repos.ItemCalibration.Latest(dbc, []string{itemID})
	if err != nil {
		if errors.Is(err, repos.ErrCalibrationIntegrity) {
			s.metrics.IncIntegrityError()
			s.log.Error("calibration integrity violation", "item_id", itemID, "error", err)
			err = integrityError(err)
		}
		s.metrics.ObserveCalibration(RefreshFailed, 0)
		span.RecordError(err)
		return nil, err
	}
	start := irt.DefaultForBand(item.Difficulty)
	if row := latest[itemID]; row != nil {
		start = irt.ItemParams{Discrimination: row.Discrimination, Difficulty: row.Difficulty, Guessing: row.Guessing}
	}

	events, err := s.repos.AnswerEvent.ListByItem(dbc, itemID, s.opts.MaxResponses)
	if err != nil {
		return nil, err
	}
	obs := make([]irt.Observation, 0, len(events))
	for _, ev := range events {
		obs = append(obs, irt.Observation{Ability: ev.AbilityBefore, Correct: ev.Correct})
	}

	fitted, stats, err := s.opts.Calibrator.Fit(start, obs)
	if errors.Is(err, irt.ErrInsufficientSamples) {
		s.metrics.ObserveCalibration(RefreshSkipped, stats.Samples)
		return &RefreshResult{ItemID: itemID, Status: RefreshSkipped, Params: start, Stats: stats}, nil
	}
	if err != nil {
		s.metrics.ObserveCalibration(RefreshFailed, stats.Samples)
		return nil, err
	}

	raw, _ := json.Marshal(stats)
	row := &types.ItemCalibration{
		ItemID:         itemID,
		Discrimination: fitted.Discrimination,
		Difficulty:     fitted.Difficulty,
		Guessing:       fitted.Guessing,
		Source:         types.CalibrationSourceRefresh,
		SampleCount:    stats.Samples,
		FitStats:       datatypes.JSON(raw),
	}
	if err := s.repos.ItemCalibration.AppendLatest(dbc, row); err != nil {
		if errors.Is(err, repos.ErrCalibrationIntegrity) {
			s.metrics.IncIntegrityError()
			err = integrityError(err)
		}
		s.metrics.ObserveCalibration(RefreshFailed, stats.Samples)
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveCalibration(RefreshUpdated, stats.Samples)
	s.log.Info("item recalibrated",
		"item_id", itemID,
		"version", row.Version,
		"samples", stats.Samples,
		"a", fitted.Discrimination,
		"b", fitted.Difficulty,
		"c", fitted.Guessing,
	)
	return &RefreshResult{ItemID: itemID, Status: RefreshUpdated, Version: row.Version, Params: fitted, Stats: stats}, nil
}

// RefreshItems refreshes items with bounded concurrency. A failing item is reported in its
// result and does not stop the others.
func (s *calibrationService) RefreshItems(ctx context.Context, itemIDs []string) ([]*RefreshResult, error) {
	ids := dedupeStrings(itemIDs)
	out := make([]*RefreshResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.RefreshItem(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("item refresh failed", "item_id", id, "error", err)
				res = &RefreshResult{ItemID: id, Status: RefreshFailed, Error: err.Error()}
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *calibrationService) RequestRefresh(ctx context.Context, itemIDs []string) (*RefreshRequest, error) {
	ids := dedupeStrings(itemIDs)
	if len(ids) == 0 {
		since := time.Now().Add(-s.opts.Lookback)
		recent, err := s.repos.AnswerEvent.ItemsWithResponsesSince(dbctx.Context{Ctx: ctx}, since)
		if err != nil {
			return nil, err
		}
		ids = recent
	}
	req := &RefreshRequest{ItemIDs: ids}
	if len(ids) == 0 {
		return req, nil
	}
	if s.starter != nil {
		wfID, runID, err := s.starter.StartCalibrationRefresh(ctx, ids)
		if err != nil {
			return nil, err
		}
		req.WorkflowID = wfID
		req.RunID = runID
		s.log.Info("calibration refresh started", "workflow_id", wfID, "items", len(ids))
		return req, nil
	}
	results, err := s.RefreshItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	req.Results = results
	return req, nil
}

func (s *calibrationService) History(ctx context.Context, itemID string) ([]*types.ItemCalibration, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, invalidParams("missing item_id")
	}
	return s.repos.ItemCalibration.History(dbctx.Context{Ctx: ctx}, itemID)
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
