package gbm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Format identifies the serialization of a model artifact
type Format string

const (
	FormatAuto    Format = "auto"
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatXGBoost Format = "xgboost"
)

const maxLineSize = 64 << 20

// FormatFromPath guesses the artifact format from its file extension
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatText
}

// Load reads a model in the given format. FormatAuto sniffs the first byte,
// then tells XGBoost JSON apart by its top-level learner key.
func Load(r io.Reader, format Format) (*Model, error) {
	switch format {
	case FormatText:
		return LoadText(r)
	case FormatJSON:
		return LoadJSON(r)
	case FormatXGBoost:
		return LoadXGBoost(r)
	case FormatAuto, "":
		br := bufio.NewReader(r)
		if firstNonSpace(br) != '{' {
			return LoadText(br)
		}
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, errors.Wrap(err, "reading model")
		}
		if isXGBoost(data) {
			return LoadXGBoost(bytes.NewReader(data))
		}
		return LoadJSON(bytes.NewReader(data))
	default:
		return nil, errors.Newf("unknown model format %q", format)
	}
}

func firstNonSpace(br *bufio.Reader) byte {
	for n := 1; ; n++ {
		peek, err := br.Peek(n)
		if len(peek) < n {
			return 0
		}
		if c := peek[n-1]; c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return c
		}
		if err != nil {
			return 0
		}
	}
}

// LoadText parses the plain-text model dump written by save_model
func LoadText(r io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	model := &Model{}
	var (
		header     = map[string]string{}
		treeParams map[string]string
		treeIndex  int
		lineNo     int
	)

	flush := func() error {
		if treeParams == nil {
			return nil
		}
		tree, err := parseTextTree(treeIndex, treeParams)
		if err != nil {
			return err
		}
		model.Trees = append(model.Trees, tree)
		treeParams = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "end of trees" {
			// what follows is training metadata
			break
		}

		switch {
		case line == "":
		case strings.HasPrefix(line, "Tree="):
			if err := flush(); err != nil {
				return nil, err
			}
			idx, err := strconv.Atoi(strings.TrimPrefix(line, "Tree="))
			if err != nil {
				return nil, malformed("line %d: invalid tree header %q", lineNo, line)
			}
			treeIndex = idx
			treeParams = map[string]string{}
		default:
			key, value, ok := strings.Cut(line, "=")
			switch {
			case !ok:
				if treeParams == nil && line == "average_output" {
					model.AverageOutput = true
				}
			case treeParams != nil:
				treeParams[key] = value
			default:
				header[key] = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading model")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := applyTextHeader(model, header); err != nil {
		return nil, err
	}
	if err := model.validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func applyTextHeader(model *Model, header map[string]string) error {
	model.Version = header["version"]
	model.Objective = header["objective"]
	if err := checkObjective(model.Objective); err != nil {
		return err
	}

	if v, ok := header["num_class"]; ok && v != "1" {
		return unsupported("num_class=%s: only single-output regression models are supported", v)
	}

	maxIdx, ok := header["max_feature_idx"]
	if !ok {
		return malformed("header is missing max_feature_idx")
	}
	n, err := strconv.Atoi(maxIdx)
	if err != nil {
		return malformed("invalid max_feature_idx %q", maxIdx)
	}
	model.numFeatures = n + 1

	if names, ok := header["feature_names"]; ok {
		model.FeatureNames = strings.Fields(names)
	}
	return nil
}

func parseTextTree(index int, params map[string]string) (Tree, error) {
	tree := Tree{Index: index, Shrinkage: 1}

	numLeaves, err := atoiParam(params, "num_leaves")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	tree.NumLeaves = numLeaves

	if v, ok := params["num_cat"]; ok && v != "0" {
		return tree, unsupported("tree %d uses categorical splits", index)
	}
	if v, ok := params["is_linear"]; ok && v != "0" {
		return tree, unsupported("tree %d is a linear tree", index)
	}
	if v, ok := params["shrinkage"]; ok {
		if tree.Shrinkage, err = strconv.ParseFloat(v, 64); err != nil {
			return tree, malformed("tree %d: invalid shrinkage %q", index, v)
		}
	}

	if tree.LeafValues, err = floatsParam(params, "leaf_value"); err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	if len(tree.LeafValues) != numLeaves {
		return tree, malformed("tree %d: num_leaves=%d but %d leaf values", index, numLeaves, len(tree.LeafValues))
	}
	if numLeaves == 1 {
		return tree, nil
	}

	features, err := intsParam(params, "split_feature")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	thresholds, err := floatsParam(params, "threshold")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	lefts, err := intsParam(params, "left_child")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	rights, err := intsParam(params, "right_child")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	decisions, err := intsParam(params, "decision_type")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}
	gains, err := optionalFloatsParam(params, "split_gain")
	if err != nil {
		return tree, errors.Wrapf(err, "tree %d", index)
	}

	n := numLeaves - 1
	for name, got := range map[string]int{
		"split_feature": len(features),
		"threshold":     len(thresholds),
		"left_child":    len(lefts),
		"right_child":   len(rights),
		"decision_type": len(decisions),
	} {
		if got != n {
			return tree, malformed("tree %d: %s has %d values, want %d", index, name, got, n)
		}
	}
	if gains != nil && len(gains) != n {
		return tree, malformed("tree %d: split_gain has %d values, want %d", index, len(gains), n)
	}

	tree.Nodes = make([]Node, n)
	for i := 0; i < n; i++ {
		dt := decisions[i]
		if dt&1 != 0 {
			return tree, unsupported("tree %d node %d is a categorical split", index, i)
		}
		node := Node{
			SplitFeature: features[i],
			Threshold:    thresholds[i],
			DefaultLeft:  dt&2 != 0,
			Missing:      MissingType((dt >> 2) & 3),
			Left:         lefts[i],
			Right:        rights[i],
		}
		if gains != nil {
			node.Gain = gains[i]
		}
		tree.Nodes[i] = node
	}
	return tree, nil
}

func atoiParam(params map[string]string, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, malformed("missing %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, malformed("invalid %s %q", key, v)
	}
	return n, nil
}

func intsParam(params map[string]string, key string) ([]int, error) {
	v, ok := params[key]
	if !ok {
		return nil, malformed("missing %s", key)
	}
	fields := strings.Fields(v)
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, malformed("invalid %s value %q", key, f)
		}
		out[i] = n
	}
	return out, nil
}

func floatsParam(params map[string]string, key string) ([]float64, error) {
	if _, ok := params[key]; !ok {
		return nil, malformed("missing %s", key)
	}
	return optionalFloatsParam(params, key)
}

func optionalFloatsParam(params map[string]string, key string) ([]float64, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	fields := strings.Fields(v)
	out := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, malformed("invalid %s value %q", key, f)
		}
		out[i] = x
	}
	return out, nil
}

type jsonModel struct {
	Version       string     `json:"version"`
	NumClass      *int       `json:"num_class"`
	MaxFeatureIdx *int       `json:"max_feature_idx"`
	Objective     string     `json:"objective"`
	AverageOutput bool       `json:"average_output"`
	FeatureNames  []string   `json:"feature_names"`
	TreeInfo      []jsonTree `json:"tree_info"`
}

type jsonTree struct {
	TreeIndex     int       `json:"tree_index"`
	NumLeaves     int       `json:"num_leaves"`
	NumCat        int       `json:"num_cat"`
	Shrinkage     *float64  `json:"shrinkage"`
	TreeStructure *jsonNode `json:"tree_structure"`
}

type jsonNode struct {
	SplitFeature *int            `json:"split_feature"`
	SplitGain    float64         `json:"split_gain"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	DefaultLeft  bool            `json:"default_left"`
	MissingType  string          `json:"missing_type"`
	LeftChild    *jsonNode       `json:"left_child"`
	RightChild   *jsonNode       `json:"right_child"`
	LeafValue    *float64        `json:"leaf_value"`
}

// LoadJSON parses the JSON produced by dump_model
func LoadJSON(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading model")
	}

	var raw jsonModel
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding model JSON"), ErrMalformed)
	}

	if raw.NumClass != nil && *raw.NumClass != 1 {
		return nil, unsupported("num_class=%d: only single-output regression models are supported", *raw.NumClass)
	}
	if err := checkObjective(raw.Objective); err != nil {
		return nil, err
	}
	if raw.MaxFeatureIdx == nil {
		return nil, malformed("model JSON is missing max_feature_idx")
	}

	model := &Model{
		Version:       raw.Version,
		Objective:     raw.Objective,
		FeatureNames:  raw.FeatureNames,
		AverageOutput: raw.AverageOutput,
		numFeatures:   *raw.MaxFeatureIdx + 1,
	}

	for _, info := range raw.TreeInfo {
		if info.NumCat > 0 {
			return nil, unsupported("tree %d uses categorical splits", info.TreeIndex)
		}
		if info.TreeStructure == nil {
			return nil, malformed("tree %d has no tree_structure", info.TreeIndex)
		}
		tree := Tree{Index: info.TreeIndex, NumLeaves: info.NumLeaves, Shrinkage: 1}
		if info.Shrinkage != nil {
			tree.Shrinkage = *info.Shrinkage
		}
		if _, err := flattenJSON(&tree, info.TreeStructure); err != nil {
			return nil, errors.Wrapf(err, "tree %d", info.TreeIndex)
		}
		model.Trees = append(model.Trees, tree)
	}

	if err := model.validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// flattenJSON appends n to tree in pre-order and returns its child reference
func flattenJSON(tree *Tree, n *jsonNode) (int, error) {
	if n.SplitFeature == nil {
		if n.LeafValue == nil {
			return 0, malformed("node has neither split_feature nor leaf_value")
		}
		tree.LeafValues = append(tree.LeafValues, *n.LeafValue)
		return ^(len(tree.LeafValues) - 1), nil
	}

	if n.DecisionType != "" && n.DecisionType != "<=" {
		return 0, unsupported("decision type %q", n.DecisionType)
	}
	if n.LeftChild == nil || n.RightChild == nil {
		return 0, malformed("split node is missing a child")
	}

	var threshold float64
	if err := json.Unmarshal(n.Threshold, &threshold); err != nil {
		return 0, malformed("invalid threshold %s", string(n.Threshold))
	}

	var missing MissingType
	switch n.MissingType {
	case "", "None":
		missing = MissingNone
	case "Zero":
		missing = MissingZero
	case "NaN":
		missing = MissingNaN
	default:
		return 0, malformed("unknown missing_type %q", n.MissingType)
	}

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{
		SplitFeature: *n.SplitFeature,
		Threshold:    threshold,
		Gain:         n.SplitGain,
		DefaultLeft:  n.DefaultLeft,
		Missing:      missing,
	})

	left, err := flattenJSON(tree, n.LeftChild)
	if err != nil {
		return 0, err
	}
	right, err := flattenJSON(tree, n.RightChild)
	if err != nil {
		return 0, err
	}
	tree.Nodes[idx].Left = left
	tree.Nodes[idx].Right = right
	return idx, nil
}
