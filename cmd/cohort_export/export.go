package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/medquiz-backend/internal/app"
	"github.com/yungbote/medquiz-backend/internal/cohort"
	"github.com/yungbote/medquiz-backend/internal/data/repos"
	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

func newRootCmd() *cobra.Command {
	var (
		courseRaw string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "cohort-export",
		Short: "Replay a course's answer log through the live and legacy mastery formulas",
		Long: "cohort-export writes one JSON line per (learner, knowledge component, answer) with the\n" +
			"mastery produced by the live update and by the legacy formula used by older cohorts.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := uuid.Parse(strings.TrimSpace(courseRaw))
			if err != nil || courseID == uuid.Nil {
				return fmt.Errorf("--course must be a course uuid")
			}
			log, err := logger.New(app.LoadConfig(nil).LogMode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			theDB, err := app.OpenDB(app.LoadConfig(log), log)
			if err != nil {
				return err
			}
			set := repos.NewSet(theDB, log, nil)

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			n, err := export(cmd.Context(), set, courseID, out)
			if err != nil {
				return err
			}
			log.Info("cohort export written", "course_id", courseID, "rows", n, "out", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&courseRaw, "course", "", "course id to export (required)")
	cmd.Flags().StringVar(&outPath, "out", "-", "output JSONL file, - for stdout")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func export(ctx context.Context, set repos.Set, courseID uuid.UUID, out io.Writer) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	cfg, err := set.AdaptiveConfig.GetCourse(dbc, courseID)
	if err != nil {
		return 0, fmt.Errorf("load course config: %w", err)
	}
	if cfg == nil {
		return 0, fmt.Errorf("course %s has no adaptive config", courseID)
	}
	overrides, err := set.AdaptiveConfig.ListKC(dbc, courseID, nil)
	if err != nil {
		return 0, fmt.Errorf("load kc overrides: %w", err)
	}
	events, err := set.AnswerEvent.ListByCourse(dbc, courseID)
	if err != nil {
		return 0, fmt.Errorf("load answer events: %w", err)
	}
	responses, err := expandResponses(events)
	if err != nil {
		return 0, err
	}
	rows := cohort.Compare(responses, paramsFor(cfg, overrides))
	if err := writeRows(out, rows); err != nil {
		return 0, fmt.Errorf("write rows: %w", err)
	}
	return len(rows), nil
}

// expandResponses fans each graded answer out to one response per knowledge component.
func expandResponses(events []*types.AnswerEvent) ([]cohort.Response, error) {
	out := make([]cohort.Response, 0, len(events))
	for _, ev := range events {
		kcs, err := ev.KnowledgeComponents()
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", ev.ID, err)
		}
		correct := ev.Correct
		for _, kc := range kcs {
			out = append(out, cohort.Response{
				LearnerID:  ev.LearnerID,
				KCID:       kc,
				Correct:    &correct,
				AnsweredAt: ev.AnsweredAt,
			})
		}
	}
	return out, nil
}

func paramsFor(cfg *types.CourseAdaptiveConfig, overrides []*types.KCBKTParams) cohort.ParamsFunc {
	course := &bkt.Params{
		LearningRate:        cfg.LearningRate,
		GuessingProbability: cfg.GuessingProbability,
		SlippingProbability: cfg.SlippingProbability,
	}
	byKC := make(map[uuid.UUID]*bkt.Params, len(overrides))
	for _, o := range overrides {
		byKC[o.KCID] = &bkt.Params{
			LearningRate:        o.LearningRate,
			GuessingProbability: o.GuessingProbability,
			SlippingProbability: o.SlippingProbability,
		}
	}
	return func(kcID uuid.UUID) bkt.Params {
		p, _ := bkt.Resolve(course, byKC[kcID])
		return p
	}
}

func writeRows(out io.Writer, rows []cohort.Row) error {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return w.Flush()
}
