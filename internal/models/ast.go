package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// AST node types.
const (
	NodeConstant  = "constant"
	NodeAttribute = "attribute"
	NodeIndicator = "indicator"
	NodeBinary    = "binary"
	NodeUnary     = "unary"
	NodeFunction  = "function"
)

// astParamKeys are the indicator tuning knobs that may appear inline on an
// AST node or a measure object (MACD fast/slow/signal, Bollinger std_dev,
// PSAR step/max, Ichimoku periods, Supertrend multiplier).
var astParamKeys = []string{
	"fast", "slow", "signal", "std_dev", "multiplier",
	"step", "max", "period_fast", "period_med", "period_slow", "smooth_k",
}

// ASTNode is one node of a filter expression tree. The wire form is a
// discriminated JSON object; `field` on an attribute node may itself be a
// nested node.
type ASTNode struct {
	Type string

	// constant
	Value float64

	// attribute / indicator
	Field      string
	FieldNode  *ASTNode
	TimePeriod int
	Offset     int
	Timeframe  string
	Params     map[string]float64

	// binary / unary
	Operator string
	Left     *ASTNode
	Right    *ASTNode
	Operand  *ASTNode

	// function
	Name string
	Args []*ASTNode

	raw json.RawMessage
}

func (n *ASTNode) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type       string          `json:"type"`
		Value      float64         `json:"value"`
		Field      json.RawMessage `json:"field"`
		TimePeriod int             `json:"time_period"`
		Offset     int             `json:"offset"`
		Timeframe  string          `json:"timeframe"`
		Operator   string          `json:"operator"`
		Left       *ASTNode        `json:"left"`
		Right      *ASTNode        `json:"right"`
		Operand    *ASTNode        `json:"operand"`
		Name       string          `json:"name"`
		Args       []*ASTNode      `json:"args"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "decoding AST node")
	}

	n.Type = aux.Type
	n.Value = aux.Value
	n.TimePeriod = aux.TimePeriod
	n.Offset = aux.Offset
	n.Timeframe = aux.Timeframe
	n.Operator = aux.Operator
	n.Left = aux.Left
	n.Right = aux.Right
	n.Operand = aux.Operand
	n.Name = aux.Name
	n.Args = aux.Args
	n.raw = append(json.RawMessage(nil), data...)

	if len(aux.Field) > 0 {
		if aux.Field[0] == '{' {
			nested := &ASTNode{}
			if err := json.Unmarshal(aux.Field, nested); err != nil {
				return errors.Wrap(err, "decoding nested field node")
			}
			n.FieldNode = nested
		} else if err := json.Unmarshal(aux.Field, &n.Field); err != nil {
			return errors.Wrap(err, "decoding field name")
		}
	}

	var extras map[string]json.RawMessage
	if err := json.Unmarshal(data, &extras); err == nil {
		for _, key := range astParamKeys {
			rawVal, ok := extras[key]
			if !ok {
				continue
			}
			var v float64
			if err := json.Unmarshal(rawVal, &v); err != nil {
				continue
			}
			if n.Params == nil {
				n.Params = make(map[string]float64)
			}
			n.Params[key] = v
		}
	}
	return nil
}

// MarshalJSON echoes the original wire form when the node came off the wire,
// so diagnostics show exactly what the caller sent.
func (n *ASTNode) MarshalJSON() ([]byte, error) {
	if len(n.raw) > 0 {
		return n.raw, nil
	}
	type plain struct {
		Type       string             `json:"type"`
		Value      float64            `json:"value,omitempty"`
		Field      string             `json:"field,omitempty"`
		TimePeriod int                `json:"time_period,omitempty"`
		Offset     int                `json:"offset,omitempty"`
		Timeframe  string             `json:"timeframe,omitempty"`
		Params     map[string]float64 `json:"params,omitempty"`
		Operator   string             `json:"operator,omitempty"`
		Left       *ASTNode           `json:"left,omitempty"`
		Right      *ASTNode           `json:"right,omitempty"`
		Operand    *ASTNode           `json:"operand,omitempty"`
		Name       string             `json:"name,omitempty"`
		Args       []*ASTNode         `json:"args,omitempty"`
	}
	return json.Marshal(plain{
		Type: n.Type, Value: n.Value, Field: n.Field,
		TimePeriod: n.TimePeriod, Offset: n.Offset, Timeframe: n.Timeframe,
		Params: n.Params, Operator: n.Operator,
		Left: n.Left, Right: n.Right, Operand: n.Operand,
		Name: n.Name, Args: n.Args,
	})
}

// Timeframes collects every timeframe referenced anywhere in the tree.
func (n *ASTNode) Timeframes(into map[string]struct{}) {
	if n == nil {
		return
	}
	if n.Timeframe != "" {
		into[n.Timeframe] = struct{}{}
	}
	n.FieldNode.Timeframes(into)
	n.Left.Timeframes(into)
	n.Right.Timeframes(into)
	n.Operand.Timeframes(into)
	for _, arg := range n.Args {
		arg.Timeframes(into)
	}
}
