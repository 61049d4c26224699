package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
)

const (
	MaxItems = 200
	// MaxPositions bounds the component positions kept across all returned
	// frames of one batch.
	MaxPositions = 2_000_000
)

var (
	ErrNoItems  = errors.New("no items")
	ErrTooMany  = fmt.Errorf("more than %d items", MaxItems)
	ErrTooLarge = fmt.Errorf("collapse timelines exceed %d positions, use a larger stride", MaxPositions)
)

type Input struct {
	Items []assessment.Request `json:"items"`
}

// Item is the outcome for one request; exactly one of Result and Error is set.
type Item struct {
	Index        int                        `json:"index"`
	AssessmentID string                     `json:"assessment_id,omitempty"`
	Result       *assessment.RiskAssessment `json:"result,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

type Result struct {
	Count  int    `json:"count"`
	Failed int    `json:"failed"`
	Items  []Item `json:"items"`
}

// Calculate assesses every item and thins its frames by stride before keeping
// it. A failing item is reported in place and does not stop the batch; a
// cancelled ctx or ErrTooLarge does.
func Calculate(ctx context.Context, engine *assessment.Engine, in Input, stride int) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, ErrNoItems
	}
	if len(in.Items) > MaxItems {
		return Result{}, ErrTooMany
	}
	out := Result{Items: make([]Item, 0, len(in.Items))}
	positions := 0
	for i, req := range in.Items {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		item := Item{Index: i, AssessmentID: req.AssessmentID}
		ra, err := engine.Assess(ctx, req)
		if err != nil {
			item.Error = err.Error()
			out.Failed++
		} else {
			ra = assessment.Thinned(ra, stride)
			positions += framePositions(ra)
			if positions > MaxPositions {
				return Result{}, ErrTooLarge
			}
			item.Result = ra
			out.Count++
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func framePositions(ra *assessment.RiskAssessment) int {
	n := 0
	for _, f := range ra.CollapseFrames {
		n += len(f.Positions)
	}
	return n
}
