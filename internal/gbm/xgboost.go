package gbm

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// XGBoost save_model JSON. Trees are stored as parallel arrays indexed by node
// id; a node is a leaf when its left child is -1 and its split condition then
// holds the leaf value.
type xgbDocument struct {
	Learner *xgbLearner `json:"learner"`
	Version []int       `json:"version"`
}

type xgbLearner struct {
	FeatureNames      []string      `json:"feature_names"`
	GradientBooster   xgbBooster    `json:"gradient_booster"`
	LearnerModelParam xgbModelParam `json:"learner_model_param"`
	Objective         xgbObjective  `json:"objective"`
}

type xgbObjective struct {
	Name string `json:"name"`
}

type xgbBooster struct {
	Name  string      `json:"name"`
	Model xgbEnsemble `json:"model"`
}

type xgbEnsemble struct {
	Trees []xgbTree `json:"trees"`
}

type xgbModelParam struct {
	BaseScore  string `json:"base_score"`
	NumClass   string `json:"num_class"`
	NumFeature string `json:"num_feature"`
	NumTarget  string `json:"num_target"`
}

type xgbTree struct {
	ID              int        `json:"id"`
	LeftChildren    []int      `json:"left_children"`
	RightChildren   []int      `json:"right_children"`
	SplitIndices    []int      `json:"split_indices"`
	SplitConditions []float64  `json:"split_conditions"`
	DefaultLeft     []flexBool `json:"default_left"`
	LossChanges     []float64  `json:"loss_changes"`
	SplitType       []int      `json:"split_type"`
}

// flexBool reads default_left, written as 0/1 by 2.x and as booleans by some 1.x builds
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return errors.Newf("invalid boolean %s", string(data))
	}
	return nil
}

// isXGBoost reports whether a JSON document was written by XGBoost's save_model
func isXGBoost(data []byte) bool {
	var head struct {
		Learner json.RawMessage `json:"learner"`
	}
	return json.Unmarshal(data, &head) == nil && len(head.Learner) > 0
}

// LoadXGBoost parses the JSON written by XGBoost's save_model
func LoadXGBoost(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading model")
	}

	var doc xgbDocument
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding XGBoost JSON"), ErrMalformed)
	}
	if doc.Learner == nil {
		return nil, malformed("XGBoost JSON has no learner")
	}
	learner := doc.Learner

	if name := learner.GradientBooster.Name; name != "gbtree" {
		return nil, unsupported("booster %q: only gbtree models are supported", name)
	}
	param := learner.LearnerModelParam
	for _, p := range [][2]string{{"num_class", param.NumClass}, {"num_target", param.NumTarget}} {
		if v := p[1]; v != "" && v != "0" && v != "1" {
			return nil, unsupported("%s=%s: only single-output regression models are supported", p[0], v)
		}
	}

	objective := learner.Objective.Name
	logLink, err := xgbLink(objective)
	if err != nil {
		return nil, err
	}

	numFeatures, err := strconv.Atoi(param.NumFeature)
	if err != nil {
		return nil, malformed("invalid num_feature %q", param.NumFeature)
	}
	base, err := parseBaseScore(param.BaseScore)
	if err != nil {
		return nil, err
	}
	if logLink {
		if base <= 0 {
			return nil, malformed("base_score %g is not positive for %s", base, objective)
		}
		base = math.Log(base)
	}

	model := &Model{
		Version:      xgbVersion(doc.Version),
		Objective:    objective,
		FeatureNames: learner.FeatureNames,
		BaseScore:    base,
		numFeatures:  numFeatures,
	}

	for i := range learner.GradientBooster.Model.Trees {
		xt := &learner.GradientBooster.Model.Trees[i]
		tree, err := convertXGBTree(xt)
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", xt.ID)
		}
		model.Trees = append(model.Trees, tree)
	}

	if err := model.validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// xgbLink reports whether objective predicts through a log link
func xgbLink(objective string) (bool, error) {
	switch objective {
	case "reg:squarederror", "reg:linear", "reg:squaredlogerror", "reg:pseudohubererror",
		"reg:absoluteerror", "reg:quantileerror":
		return false, nil
	case "count:poisson", "reg:gamma", "reg:tweedie":
		return true, nil
	default:
		return false, unsupported("objective %q is not a regression objective", objective)
	}
}

// parseBaseScore accepts "5E-1" and the bracketed "[5E-1]" written since 2.1
func parseBaseScore(v string) (float64, error) {
	v = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "["), "]")
	if strings.Contains(v, ",") {
		return 0, unsupported("base_score %q has more than one target", v)
	}
	score, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, malformed("invalid base_score %q", v)
	}
	return score, nil
}

func xgbVersion(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.TrimSpace("xgboost " + strings.Join(parts, "."))
}

func convertXGBTree(xt *xgbTree) (Tree, error) {
	tree := Tree{Index: xt.ID, Shrinkage: 1}

	n := len(xt.LeftChildren)
	if n == 0 {
		return tree, malformed("tree has no nodes")
	}
	lengths := []struct {
		key string
		got int
	}{
		{"right_children", len(xt.RightChildren)},
		{"split_indices", len(xt.SplitIndices)},
		{"split_conditions", len(xt.SplitConditions)},
		{"default_left", len(xt.DefaultLeft)},
	}
	for _, l := range lengths {
		if l.got != n {
			return tree, malformed("%d left_children but %d %s", n, l.got, l.key)
		}
	}

	if _, err := flattenXGB(&tree, xt, 0, make([]bool, n)); err != nil {
		return tree, err
	}
	tree.NumLeaves = len(tree.LeafValues)
	return tree, nil
}

// flattenXGB appends node id to tree in pre-order and returns its child reference
func flattenXGB(tree *Tree, xt *xgbTree, id int, seen []bool) (int, error) {
	if id < 0 || id >= len(seen) {
		return 0, malformed("node %d out of range", id)
	}
	if seen[id] {
		return 0, malformed("node %d is reachable twice", id)
	}
	seen[id] = true

	if xt.LeftChildren[id] == -1 {
		tree.LeafValues = append(tree.LeafValues, xt.SplitConditions[id])
		return ^(len(tree.LeafValues) - 1), nil
	}
	if id < len(xt.SplitType) && xt.SplitType[id] != 0 {
		return 0, unsupported("node %d uses a categorical split", id)
	}

	var gain float64
	if id < len(xt.LossChanges) {
		gain = xt.LossChanges[id]
	}

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{
		SplitFeature: xt.SplitIndices[id],
		Threshold:    xt.SplitConditions[id],
		Gain:         gain,
		DefaultLeft:  bool(xt.DefaultLeft[id]),
		Missing:      MissingNaN,
		Strict:       true,
	})

	left, err := flattenXGB(tree, xt, xt.LeftChildren[id], seen)
	if err != nil {
		return 0, err
	}
	right, err := flattenXGB(tree, xt, xt.RightChildren[id], seen)
	if err != nil {
		return 0, err
	}
	tree.Nodes[idx].Left = left
	tree.Nodes[idx].Right = right
	return idx, nil
}
