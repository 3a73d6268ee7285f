package voice

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// MergeEngine attempts to complete a stored partial command with newly
// recognized text by re-invoking classification seeded with the prior
// command. A nil command result means the merge failed and the caller must
// discard the stored context and treat the new text as fresh input.
type MergeEngine struct {
	classifier Classifier
	logger     aqm.Logger
}

func NewMergeEngine(classifier Classifier, logger aqm.Logger) *MergeEngine {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &MergeEngine{
		classifier: classifier,
		logger:     logger,
	}
}

func (m *MergeEngine) Merge(ctx context.Context, stored *IncompleteContext, newText string) (*Command, error) {
	if stored == nil || stored.Command == nil {
		return nil, fmt.Errorf("no incomplete context to merge")
	}

	merged, err := m.classifier.Classify(ctx, stored.RestaurantID, newText, stored.Command)
	if err != nil {
		m.logger.Info("merge classification failed", "restaurant_id", stored.RestaurantID.String(), "error", err)
		return nil, nil
	}

	if merged == nil || merged.IsIncomplete {
		m.logger.Debug("merge left command incomplete", "restaurant_id", stored.RestaurantID.String())
		return nil, nil
	}

	return merged, nil
}
