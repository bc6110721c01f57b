package gbm

import (
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureNames = "temperature rain holiday hour day month day_of_week is_weekend lag_1 lag_24 rolling_mean_24 rolling_std_24"

const textModel = `tree
version=v4
num_class=1
num_tree_per_iteration=1
label_index=0
max_feature_idx=11
objective=regression
feature_names=` + featureNames + `
tree_sizes=210 120

Tree=0
num_leaves=3
num_cat=0
split_feature=3 8
split_gain=10 5
threshold=12.500000000000002 150
decision_type=10 2
left_child=-1 -2
right_child=1 -3
leaf_value=10 20 30
leaf_weight=5 5 5
leaf_count=5 5 5
internal_value=0 0
is_linear=0
shrinkage=1


Tree=1
num_leaves=1
num_cat=0
split_feature=
split_gain=
threshold=
decision_type=
left_child=
right_child=
leaf_value=0.5
is_linear=0
shrinkage=0.1


end of trees

feature_importances:
hour=1
lag_1=1

parameters:
[boosting: gbdt]
[objective: regression]
end of parameters

pandas_categorical:null
`

const lightgbmJSON = `{
  "name": "tree",
  "version": "v4",
  "num_class": 1,
  "num_tree_per_iteration": 1,
  "label_index": 0,
  "max_feature_idx": 11,
  "objective": "regression",
  "average_output": false,
  "feature_names": ["temperature","rain","holiday","hour","day","month","day_of_week","is_weekend","lag_1","lag_24","rolling_mean_24","rolling_std_24"],
  "tree_info": [
    {"tree_index": 0, "num_leaves": 3, "num_cat": 0, "shrinkage": 1,
     "tree_structure": {
       "split_index": 0, "split_feature": 3, "split_gain": 10, "threshold": 12.500000000000002,
       "decision_type": "<=", "default_left": true, "missing_type": "NaN",
       "left_child": {"leaf_index": 0, "leaf_value": 10},
       "right_child": {
         "split_index": 1, "split_feature": 8, "split_gain": 5, "threshold": 150,
         "decision_type": "<=", "default_left": true, "missing_type": "None",
         "left_child": {"leaf_index": 1, "leaf_value": 20},
         "right_child": {"leaf_index": 2, "leaf_value": 30}
       }
     }},
    {"tree_index": 1, "num_leaves": 1, "num_cat": 0, "shrinkage": 0.1,
     "tree_structure": {"leaf_value": 0.5}}
  ]
}`

func vector(hour, lag1 float64) []float64 {
	return []float64{30, 0, 0, hour, 12, 6, 2, 0, lag1, 90, 95, 10}
}

func loadBoth(t *testing.T) map[string]*Model {
	t.Helper()
	text, err := LoadText(strings.NewReader(textModel))
	require.NoError(t, err)
	js, err := LoadJSON(strings.NewReader(lightgbmJSON))
	require.NoError(t, err)
	return map[string]*Model{"text": text, "json": js}
}

func TestLoad_Metadata(t *testing.T) {
	for name, m := range loadBoth(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 12, m.NumFeatures())
			assert.Equal(t, "regression", m.Objective)
			assert.Equal(t, strings.Fields(featureNames), m.FeatureNames)
			require.Len(t, m.Trees, 2)
			assert.Len(t, m.Trees[0].Nodes, 2)
			assert.Equal(t, []float64{0.5}, m.Trees[1].LeafValues)
		})
	}
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"early hour", vector(5, 100), 10.5},
		{"evening, low lag", vector(18, 100), 20.5},
		{"evening, high lag", vector(18, 200), 30.5},
		{"threshold is inclusive", vector(12.500000000000002, 100), 10.5},
		{"NaN hour follows default", vector(math.NaN(), 200), 10.5},
		{"NaN lag treated as zero", vector(18, math.NaN()), 20.5},
	}

	for name, m := range loadBoth(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := m.Predict(tt.x)
				require.NoError(t, err)
				assert.InDelta(t, tt.want, got, 1e-12)
			})
		}
	}
}

func TestPredict_Deterministic(t *testing.T) {
	m := loadBoth(t)["text"]
	first, err := m.Predict(vector(18, 100))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := m.Predict(vector(18, 100))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredict_DimensionMismatch(t *testing.T) {
	m := loadBoth(t)["text"]

	_, err := m.Predict(make([]float64, 11))
	require.Error(t, err)

	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 12, dimErr.Expected)
	assert.Equal(t, 11, dimErr.Got)
}

func TestPredict_PoissonTransform(t *testing.T) {
	m, err := LoadText(strings.NewReader(strings.Replace(textModel, "objective=regression", "objective=poisson", 1)))
	require.NoError(t, err)

	got, err := m.Predict(vector(5, 100))
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(10.5), got, 1e-6)
}

func TestPredict_AverageOutput(t *testing.T) {
	m, err := LoadText(strings.NewReader(strings.Replace(textModel, "tree_sizes", "average_output\ntree_sizes", 1)))
	require.NoError(t, err)
	assert.True(t, m.AverageOutput)

	got, err := m.Predict(vector(5, 100))
	require.NoError(t, err)
	assert.InDelta(t, 10.5/2, got, 1e-12)
}

func TestFeatureImportances(t *testing.T) {
	for name, m := range loadBoth(t) {
		t.Run(name, func(t *testing.T) {
			gain, err := m.FeatureImportances(ImportanceGain)
			require.NoError(t, err)
			require.Len(t, gain, 12)
			assert.InDelta(t, 2.0/3, gain[3], 1e-12)
			assert.InDelta(t, 1.0/3, gain[8], 1e-12)

			split, err := m.FeatureImportances(ImportanceSplit)
			require.NoError(t, err)
			assert.InDelta(t, 0.5, split[3], 1e-12)
			assert.InDelta(t, 0.5, split[8], 1e-12)

			var sum float64
			for _, w := range split {
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-12)

			_, err = m.FeatureImportances("cover")
			assert.Error(t, err)
		})
	}
}

func TestFeatureImportances_NoSplits(t *testing.T) {
	src := strings.Replace(textModel, textModel[strings.Index(textModel, "Tree=0"):strings.Index(textModel, "Tree=1")], "", 1)
	m, err := LoadText(strings.NewReader(src))
	require.NoError(t, err)

	w, err := m.FeatureImportances(ImportanceGain)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 12), w)
}

func TestLoad_AutoDetect(t *testing.T) {
	m, err := Load(strings.NewReader("\n  "+lightgbmJSON), FormatAuto)
	require.NoError(t, err)
	assert.Len(t, m.Trees, 2)

	m, err = Load(strings.NewReader(textModel), FormatAuto)
	require.NoError(t, err)
	assert.Len(t, m.Trees, 2)

	_, err = Load(strings.NewReader(textModel), Format("pickle"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("models/ola.JSON"))
	assert.Equal(t, FormatText, FormatFromPath("ola_model.txt"))
	assert.Equal(t, FormatText, FormatFromPath("ola_model"))
}

func TestLoadText_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"empty input", "", ErrMalformed},
		{"not a model", "datetime,count\n2024-01-01 00:00:00,5\n", ErrMalformed},
		{"no trees", "tree\nmax_feature_idx=11\nobjective=regression\n\nend of trees\n", ErrEmptyModel},
		{"classification", strings.Replace(textModel, "objective=regression", "objective=binary sigmoid:1", 1), ErrUnsupported},
		{"multiclass", strings.Replace(textModel, "num_class=1", "num_class=3", 1), ErrUnsupported},
		{"categorical split", strings.Replace(textModel, "decision_type=10 2", "decision_type=1 2", 1), ErrUnsupported},
		{"bad float", strings.Replace(textModel, "leaf_value=10 20 30", "leaf_value=10 x 30", 1), ErrMalformed},
		{"leaf count mismatch", strings.Replace(textModel, "leaf_value=10 20 30", "leaf_value=10 20", 1), ErrMalformed},
		{"backwards child", strings.Replace(textModel, "right_child=1 -3", "right_child=0 -3", 1), ErrMalformed},
		{"leaf out of range", strings.Replace(textModel, "right_child=1 -3", "right_child=1 -9", 1), ErrMalformed},
		{"feature out of range", strings.Replace(textModel, "split_feature=3 8", "split_feature=3 12", 1), ErrMalformed},
		{"names mismatch", strings.Replace(textModel, "feature_names=temperature ", "feature_names=", 1), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadText(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"truncated", lightgbmJSON[:40], ErrMalformed},
		{"missing max_feature_idx", strings.Replace(lightgbmJSON, `"max_feature_idx": 11,`, "", 1), ErrMalformed},
		{"categorical", strings.Replace(lightgbmJSON, `"decision_type": "<=", "default_left": true, "missing_type": "NaN"`, `"decision_type": "==", "default_left": true, "missing_type": "NaN"`, 1), ErrUnsupported},
		{"unknown missing type", strings.Replace(lightgbmJSON, `"missing_type": "NaN"`, `"missing_type": "Maybe"`, 1), ErrMalformed},
		{"no trees", strings.Replace(lightgbmJSON, lightgbmJSON[strings.Index(lightgbmJSON, `"tree_info"`):strings.LastIndex(lightgbmJSON, "]")+1], `"tree_info": []`, 1), ErrEmptyModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJSON(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
