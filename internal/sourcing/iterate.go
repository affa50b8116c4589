package sourcing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/keywords"
)

// TopCandidate is the snapshot of a leading candidate kept in history.
type TopCandidate struct {
	Name          string   `json:"name"`
	Score         float64  `json:"match_score"`
	MatchedSkills []string `json:"matched_skills"`
}

// IterationRecord summarizes one finished round.
type IterationRecord struct {
	Round          int            `json:"round"`
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Keywords       keywords.Set   `json:"keywords"`
	Location       string         `json:"location,omitempty"`
	CandidateCount int            `json:"candidates_count"`
	AverageScore   float64        `json:"average_score"`
	TopCandidates  []TopCandidate `json:"top_candidates"`
}

// Decision tells Iterate whether to run another round and how to refine it.
// Empty keyword lists and an empty location keep the previous values. An
// optional or excluded list holding only keywords.Clear empties that list.
type Decision struct {
	Continue bool
	Keywords keywords.Set
	Location string
}

// DecisionFunc is asked after every round except the last one.
type DecisionFunc func(ctx context.Context, history []IterationRecord) (Decision, error)

// Record builds the history entry of a round keeping the topN best candidates.
func Record(res *RoundResult, topN int, now time.Time) IterationRecord {
	rec := IterationRecord{
		Round:          res.Round,
		ID:             res.ID,
		Timestamp:      now,
		Keywords:       res.Request.Keywords,
		Location:       res.Request.Location,
		CandidateCount: len(res.Candidates),
		AverageScore:   averageScore(res.Candidates),
		TopCandidates:  []TopCandidate{},
	}

	for i, cand := range res.Candidates {
		if i >= topN {
			break
		}
		rec.TopCandidates = append(rec.TopCandidates, TopCandidate{
			Name:          cand.Name(),
			Score:         cand.MatchScore,
			MatchedSkills: cand.MatchedSkills(),
		})
	}

	return rec
}

// Iterate runs rounds until decide declines to continue or MaxRounds is
// reached. A nil decide runs a single round.
func (c *Controller) Iterate(ctx context.Context, req Request, decide DecisionFunc) ([]IterationRecord, []*RoundResult, error) {
	var history []IterationRecord
	var results []*RoundResult

	for i := 1; i <= c.opts.MaxRounds; i++ {
		c.logger.Info("starting iteration", zap.Int("iteration", i), zap.Int("max_iterations", c.opts.MaxRounds))

		res, err := c.Run(ctx, req)
		if err != nil {
			return history, results, err
		}
		results = append(results, res)

		rec := Record(res, c.opts.TopN, time.Now())
		history = append(history, rec)
		c.logger.Info("iteration completed",
			zap.Int("iteration", len(history)),
			zap.Int("candidates", rec.CandidateCount),
			zap.Float64("average_score", rec.AverageScore),
		)

		if decide == nil || i == c.opts.MaxRounds {
			break
		}

		decision, err := decide(ctx, history)
		if err != nil {
			return history, results, err
		}
		if !decision.Continue {
			c.logger.Info("iteration process ended by operator")
			break
		}

		next := refine(req, decision)
		if next.Location == req.Location && next.Keywords.Normalize().Equal(req.Keywords.Normalize()) {
			c.logger.Info("keywords unchanged, repeating the round", zap.Stringer("keywords", next.Keywords))
		}
		req = next
	}

	return history, results, nil
}

func refine(req Request, d Decision) Request {
	next := req
	if len(d.Keywords.Required) > 0 {
		next.Keywords.Required = d.Keywords.Required
	}
	next.Keywords.Optional = refineList(req.Keywords.Optional, d.Keywords.Optional)
	next.Keywords.Excluded = refineList(req.Keywords.Excluded, d.Keywords.Excluded)
	if d.Location != "" {
		next.Location = d.Location
	}
	return next
}

func refineList(current, update []string) []string {
	switch {
	case keywords.IsClear(update):
		return nil
	case len(update) > 0:
		return update
	default:
		return current
	}
}
