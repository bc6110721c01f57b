package gbm

import (
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Same splits as textModel, written by XGBoost 2.0 save_model with base_score 0.5
const xgboostJSON = `{
  "learner": {
    "attributes": {},
    "feature_names": ["temperature","rain","holiday","hour","day","month","day_of_week","is_weekend","lag_1","lag_24","rolling_mean_24","rolling_std_24"],
    "feature_types": ["float","float","float","int","int","int","int","int","float","float","float","float"],
    "gradient_booster": {
      "model": {
        "gbtree_model_param": {"num_parallel_tree": "1", "num_trees": "1"},
        "iteration_indptr": [0, 1],
        "tree_info": [0],
        "trees": [{
          "base_weights": [0, 10, 0, 20, 30],
          "categories": [], "categories_nodes": [], "categories_segments": [], "categories_sizes": [],
          "default_left": [1, 0, 0, 0, 0],
          "id": 0,
          "left_children": [1, -1, 3, -1, -1],
          "loss_changes": [10, 0, 5, 0, 0],
          "parents": [2147483647, 0, 0, 2, 2],
          "right_children": [2, -1, 4, -1, -1],
          "split_conditions": [12.5, 10, 150, 20, 30],
          "split_indices": [3, 0, 8, 0, 0],
          "split_type": [0, 0, 0, 0, 0],
          "sum_hessian": [15, 5, 10, 5, 5],
          "tree_param": {"num_deleted": "0", "num_feature": "12", "num_nodes": "5", "size_leaf_vector": "1"}
        }]
      },
      "name": "gbtree"
    },
    "learner_model_param": {"base_score": "5E-1", "boost_from_average": "1", "num_class": "0", "num_feature": "12", "num_target": "1"},
    "objective": {"name": "reg:squarederror", "reg_loss_param": {"scale_pos_weight": "1"}}
  },
  "version": [2, 0, 3]
}`

func TestLoadXGBoost_Metadata(t *testing.T) {
	m, err := LoadXGBoost(strings.NewReader(xgboostJSON))
	require.NoError(t, err)

	assert.Equal(t, "xgboost 2.0.3", m.Version)
	assert.Equal(t, "reg:squarederror", m.Objective)
	assert.Equal(t, 12, m.NumFeatures())
	assert.Equal(t, strings.Fields(featureNames), m.FeatureNames)
	assert.Equal(t, 0.5, m.BaseScore)
	require.Len(t, m.Trees, 1)
	assert.Equal(t, 3, m.Trees[0].NumLeaves)
	assert.Equal(t, []float64{10, 20, 30}, m.Trees[0].LeafValues)
	for _, n := range m.Trees[0].Nodes {
		assert.True(t, n.Strict)
		assert.Equal(t, MissingNaN, n.Missing)
	}
}

func TestLoadXGBoost_Predict(t *testing.T) {
	m, err := LoadXGBoost(strings.NewReader(xgboostJSON))
	require.NoError(t, err)

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"early hour", vector(5, 100), 10.5},
		{"evening, low lag", vector(18, 100), 20.5},
		{"evening, high lag", vector(18, 200), 30.5},
		{"threshold is exclusive", vector(12.5, 100), 20.5},
		{"lag on threshold goes right", vector(18, 150), 30.5},
		{"compared in single precision", vector(12.499999999, 100), 20.5},
		{"NaN hour follows default left", vector(math.NaN(), 200), 10.5},
		{"NaN lag follows default right", vector(18, math.NaN()), 30.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Predict(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLoadXGBoost_PoissonBaseScore(t *testing.T) {
	src := strings.Replace(xgboostJSON, `"name": "reg:squarederror"`, `"name": "count:poisson"`, 1)
	src = strings.Replace(src, `"base_score": "5E-1"`, `"base_score": "[1E0]"`, 1)

	m, err := LoadXGBoost(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.BaseScore)

	got, err := m.Predict(vector(5, 100))
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(10), got, 1e-6)
}

func TestLoadXGBoost_BooleanDefaultLeft(t *testing.T) {
	src := strings.Replace(xgboostJSON, `"default_left": [1, 0, 0, 0, 0]`, `"default_left": [true, false, false, false, false]`, 1)

	m, err := LoadXGBoost(strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, m.Trees[0].Nodes[0].DefaultLeft)
	assert.False(t, m.Trees[0].Nodes[1].DefaultLeft)
}

func TestLoadXGBoost_Importances(t *testing.T) {
	m, err := LoadXGBoost(strings.NewReader(xgboostJSON))
	require.NoError(t, err)

	gain, err := m.FeatureImportances(ImportanceGain)
	require.NoError(t, err)
	require.Len(t, gain, 12)
	assert.InDelta(t, 2.0/3, gain[3], 1e-12)
	assert.InDelta(t, 1.0/3, gain[8], 1e-12)

	split, err := m.FeatureImportances(ImportanceSplit)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, split[3], 1e-12)
	assert.InDelta(t, 0.5, split[8], 1e-12)
}

func TestLoad_AutoDetectXGBoost(t *testing.T) {
	m, err := Load(strings.NewReader("\n"+xgboostJSON), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, "xgboost 2.0.3", m.Version)

	got, err := m.Predict(vector(18, 100))
	require.NoError(t, err)
	assert.InDelta(t, 20.5, got, 1e-12)

	m, err = Load(strings.NewReader(xgboostJSON), FormatXGBoost)
	require.NoError(t, err)
	assert.Len(t, m.Trees, 1)

	_, err = Load(strings.NewReader(lightgbmJSON), FormatXGBoost)
	assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
}

func TestLoadXGBoost_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"truncated", xgboostJSON[:60], ErrMalformed},
		{"no learner", `{"version": [2, 0, 3]}`, ErrMalformed},
		{"linear booster", strings.Replace(xgboostJSON, `"name": "gbtree"`, `"name": "gblinear"`, 1), ErrUnsupported},
		{"classifier", strings.Replace(xgboostJSON, `"name": "reg:squarederror"`, `"name": "binary:logistic"`, 1), ErrUnsupported},
		{"multiclass", strings.Replace(xgboostJSON, `"num_class": "0"`, `"num_class": "3"`, 1), ErrUnsupported},
		{"multi target base score", strings.Replace(xgboostJSON, `"base_score": "5E-1"`, `"base_score": "[5E-1,2E0]"`, 1), ErrUnsupported},
		{"categorical split", strings.Replace(xgboostJSON, `"split_type": [0, 0, 0, 0, 0]`, `"split_type": [1, 0, 0, 0, 0]`, 1), ErrUnsupported},
		{"bad base score", strings.Replace(xgboostJSON, `"base_score": "5E-1"`, `"base_score": "half"`, 1), ErrMalformed},
		{"bad num_feature", strings.Replace(xgboostJSON, `"num_feature": "12", "num_target"`, `"num_feature": "", "num_target"`, 1), ErrMalformed},
		{"array length mismatch", strings.Replace(xgboostJSON, `"split_indices": [3, 0, 8, 0, 0]`, `"split_indices": [3, 0, 8]`, 1), ErrMalformed},
		{"child out of range", strings.Replace(xgboostJSON, `"right_children": [2, -1, 4, -1, -1]`, `"right_children": [2, -1, 9, -1, -1]`, 1), ErrMalformed},
		{"cycle", strings.Replace(xgboostJSON, `"left_children": [1, -1, 3, -1, -1]`, `"left_children": [1, -1, 0, -1, -1]`, 1), ErrMalformed},
		{"feature out of range", strings.Replace(xgboostJSON, `"split_indices": [3, 0, 8, 0, 0]`, `"split_indices": [3, 0, 12, 0, 0]`, 1), ErrMalformed},
		{"bad default_left", strings.Replace(xgboostJSON, `"default_left": [1, 0, 0, 0, 0]`, `"default_left": [2, 0, 0, 0, 0]`, 1), ErrMalformed},
		{"no trees", strings.Replace(xgboostJSON, xgboostJSON[strings.Index(xgboostJSON, `"trees": [`):strings.Index(xgboostJSON, `}]`)+2], `"trees": []`, 1), ErrEmptyModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadXGBoost(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
