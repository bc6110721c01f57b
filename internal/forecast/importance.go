package forecast

import (
	"fmt"
	"sort"

	"github.com/richxcame/ridedemand/internal/gbm"
	"github.com/richxcame/ridedemand/pkg/common"
)

// ViewImportance names the feature importance view in errors and logs
const ViewImportance = "feature_importance"

// FeatureImportance is one ranked row of the importance view
type FeatureImportance struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Rank   int     `json:"rank"`
}

// ImportanceView pairs names with weights and ranks them by weight, highest
// first. Ties keep feature order. Mismatched lengths are a RenderError.
func ImportanceView(names []string, weights []float64) ([]FeatureImportance, error) {
	if len(names) != len(weights) {
		return nil, common.NewRenderError(ViewImportance,
			fmt.Errorf("%d feature names but %d importances", len(names), len(weights)))
	}

	rows := make([]FeatureImportance, len(names))
	for i, name := range names {
		rows[i] = FeatureImportance{Name: name, Weight: weights[i]}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Weight > rows[j].Weight
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// Importance builds the importance view for the loaded model
func (p *Predictor) Importance(kind gbm.ImportanceType) ([]FeatureImportance, error) {
	if p.model == nil {
		return nil, common.NewRenderError(ViewImportance, fmt.Errorf("no model loaded"))
	}
	weights, err := p.model.FeatureImportances(kind)
	if err != nil {
		return nil, common.NewRenderError(ViewImportance, err)
	}
	return ImportanceView(FeatureNames[:], weights)
}
