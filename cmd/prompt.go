package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/sourcing"
)

const (
	PromptContinue = "Run another round"
	PromptRefine   = "Refine keywords and run another round"
	PromptTop      = "Show top candidates"
	PromptHistory  = "Show round history"
	PromptStop     = "Stop"
)

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptContinue, PromptRefine, PromptTop, PromptHistory, PromptStop},
}

// promptDecision asks the operator what to do after every round.
func promptDecision(logger *zap.Logger) sourcing.DecisionFunc {
	return func(_ context.Context, history []sourcing.IterationRecord) (sourcing.Decision, error) {
		last := history[len(history)-1]

		for {
			_, action, err := prompt.Run()
			if err != nil {
				return sourcing.Decision{}, err
			}

			switch action {
			case PromptContinue:
				return sourcing.Decision{Continue: true}, nil
			case PromptRefine:
				return refineDecision(last)
			case PromptTop:
				pretty, _ := json.MarshalIndent(last.TopCandidates, "", "  ")
				logger.Info(string(pretty), zap.Int("round", last.Round), zap.Float64("average_score", last.AverageScore))
			case PromptHistory:
				pretty, _ := json.MarshalIndent(history, "", "  ")
				logger.Info(string(pretty), zap.Int("rounds", len(history)))
			case PromptStop:
				return sourcing.Decision{}, nil
			default:
				return sourcing.Decision{}, fmt.Errorf("invalid action: %s", action)
			}
		}
	}
}

// refineDecision asks for new keyword lists. Empty answers keep the previous
// values, a single "-" clears an optional or excluded list.
func refineDecision(last sourcing.IterationRecord) (sourcing.Decision, error) {
	required, err := ask("Must-have keywords", last.Keywords.Required, false, func(input string) error {
		if len(keywords.Split(input)) == 0 {
			return errors.New("at least one must-have keyword is required")
		}
		return nil
	})
	if err != nil {
		return sourcing.Decision{}, err
	}

	optional, err := ask("Nice-to-have keywords", last.Keywords.Optional, true, nil)
	if err != nil {
		return sourcing.Decision{}, err
	}

	excluded, err := ask("Excluded keywords", last.Keywords.Excluded, true, nil)
	if err != nil {
		return sourcing.Decision{}, err
	}

	location, err := (&promptui.Prompt{Label: "Location", Default: last.Location, AllowEdit: true}).Run()
	if err != nil {
		return sourcing.Decision{}, err
	}

	return sourcing.Decision{
		Continue: true,
		Keywords: keywords.Set{
			Required: keywords.Split(required),
			Optional: keywords.Split(optional),
			Excluded: keywords.Split(excluded),
		},
		Location: strings.TrimSpace(location),
	}, nil
}

func ask(label string, current []string, clearable bool, validate promptui.ValidateFunc) (string, error) {
	hint := " (comma separated)"
	if clearable {
		hint = " (comma separated, " + keywords.Clear + " to clear)"
	}
	p := promptui.Prompt{
		Label:     label + hint,
		Default:   strings.Join(current, ", "),
		AllowEdit: true,
		Validate:  validate,
	}
	return p.Run()
}
