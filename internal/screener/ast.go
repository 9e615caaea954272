package screener

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"stock-screener/internal/indicators"
	"stock-screener/internal/models"
)

// EvalExpr evaluates an expression tree at a candle index. Booleans are
// numeric: 1 is true, 0 is false, so comparisons and arithmetic compose
// freely. idx is negative-from-the-end; node offsets push further back.
func EvalExpr(n *models.ASTNode, frames map[string]*models.Frame, idx int) (float64, error) {
	if n == nil {
		return 0, errors.New("nil expression node")
	}

	switch n.Type {
	case models.NodeConstant:
		return n.Value, nil

	case models.NodeAttribute:
		effectiveIdx := idx - n.Offset
		if n.FieldNode != nil {
			return EvalExpr(n.FieldNode, frames, effectiveIdx)
		}
		field := strings.ToLower(n.Field)
		frame, err := frameFor(frames, n.Timeframe, field)
		if err != nil {
			return 0, err
		}
		val, err := frame.Value(field, effectiveIdx)
		if err != nil {
			return 0, err
		}
		return val, nil

	case models.NodeIndicator:
		frame, err := frameFor(frames, n.Timeframe, n.Field)
		if err != nil {
			return 0, err
		}
		period := n.TimePeriod
		if period <= 0 {
			period = 14
		}
		return indicators.Value(frame, n.Field, period, idx-n.Offset, indicators.Params(n.Params))

	case models.NodeBinary:
		return evalBinary(n, frames, idx)

	case models.NodeUnary:
		val, err := EvalExpr(n.Operand, frames, idx)
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case "NOT", "!":
			if val == 0 {
				return 1, nil
			}
			return 0, nil
		case "-":
			return -val, nil
		}
		return 0, errors.Errorf("unknown unary operator: %s", n.Operator)

	case models.NodeFunction:
		args := make([]float64, 0, len(n.Args))
		for _, arg := range n.Args {
			v, err := EvalExpr(arg, frames, idx)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
		}
		if len(args) == 0 {
			return 0, errors.Errorf("function %s needs arguments", n.Name)
		}
		switch strings.ToUpper(n.Name) {
		case "ABS":
			return math.Abs(args[0]), nil
		case "MIN":
			out := args[0]
			for _, v := range args[1:] {
				out = math.Min(out, v)
			}
			return out, nil
		case "MAX":
			out := args[0]
			for _, v := range args[1:] {
				out = math.Max(out, v)
			}
			return out, nil
		}
		return 0, errors.Errorf("unknown function: %s", n.Name)
	}

	return 0, errors.Errorf("unknown node type: %s", n.Type)
}

func frameFor(frames map[string]*models.Frame, timeframe, field string) (*models.Frame, error) {
	tf := timeframe
	if tf == "" {
		tf = "daily"
	}
	frame, ok := frames[tf]
	if !ok || frame == nil {
		return nil, errors.Errorf("timeframe %q data not found for %q", tf, field)
	}
	return frame, nil
}

func evalBinary(n *models.ASTNode, frames map[string]*models.Frame, idx int) (float64, error) {
	left, err := EvalExpr(n.Left, frames, idx)
	if err != nil {
		return 0, err
	}
	right, err := EvalExpr(n.Right, frames, idx)
	if err != nil {
		return 0, err
	}

	boolVal := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	switch n.Operator {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return 0, nil
		}
		return left / right, nil

	case ">", "gt":
		return boolVal(left > right), nil
	case "<", "lt":
		return boolVal(left < right), nil
	case ">=", "gte":
		return boolVal(left >= right), nil
	case "<=", "lte":
		return boolVal(left <= right), nil
	case "==", "eq":
		return boolVal(left == right), nil
	case "!=", "ne":
		return boolVal(left != right), nil

	case "AND", "&&":
		return boolVal(left != 0 && right != 0), nil
	case "OR", "||":
		return boolVal(left != 0 || right != 0), nil

	case models.OpCrossedAbove, models.OpCrossedBelow:
		leftPrev, err := EvalExpr(n.Left, frames, idx-1)
		if err != nil {
			return 0, err
		}
		rightPrev, err := EvalExpr(n.Right, frames, idx-1)
		if err != nil {
			return 0, err
		}
		if n.Operator == models.OpCrossedAbove {
			return boolVal(leftPrev <= rightPrev && left > right), nil
		}
		return boolVal(leftPrev >= rightPrev && left < right), nil
	}

	return 0, errors.Errorf("unknown binary operator: %s", n.Operator)
}
