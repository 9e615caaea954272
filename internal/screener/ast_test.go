package screener

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-screener/internal/models"
)

func parseNode(t *testing.T, raw string) *models.ASTNode {
	t.Helper()
	var n models.ASTNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	return &n
}

func dailyFrames(closes []float64) map[string]*models.Frame {
	return map[string]*models.Frame{"daily": frameFromCloses("TEST", closes)}
}

func TestEvalExprArithmetic(t *testing.T) {
	frames := dailyFrames([]float64{100, 102, 104})

	n := parseNode(t, `{
		"type": "binary", "operator": "+",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 10}
	}`)
	v, err := EvalExpr(n, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 114.0, v)
}

func TestEvalExprDivisionByZeroIsZero(t *testing.T) {
	frames := dailyFrames([]float64{100})

	n := parseNode(t, `{
		"type": "binary", "operator": "/",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 0}
	}`)
	v, err := EvalExpr(n, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestEvalExprComparisonsAreNumericBooleans(t *testing.T) {
	frames := dailyFrames([]float64{100, 105})

	gt := parseNode(t, `{
		"type": "binary", "operator": ">",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 104}
	}`)
	v, err := EvalExpr(gt, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	lt := parseNode(t, `{
		"type": "binary", "operator": "<",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 104}
	}`)
	v, err = EvalExpr(lt, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestEvalExprLogicalOperators(t *testing.T) {
	frames := dailyFrames([]float64{100, 105})

	and := parseNode(t, `{
		"type": "binary", "operator": "AND",
		"left": {"type": "constant", "value": 1},
		"right": {"type": "constant", "value": 0}
	}`)
	v, err := EvalExpr(and, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	or := parseNode(t, `{
		"type": "binary", "operator": "OR",
		"left": {"type": "constant", "value": 1},
		"right": {"type": "constant", "value": 0}
	}`)
	v, err = EvalExpr(or, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	not := parseNode(t, `{
		"type": "unary", "operator": "NOT",
		"operand": {"type": "constant", "value": 0}
	}`)
	v, err = EvalExpr(not, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestEvalExprAbsFunction(t *testing.T) {
	frames := dailyFrames([]float64{100})

	n := parseNode(t, `{
		"type": "function", "name": "ABS",
		"args": [{"type": "constant", "value": -7}]
	}`)
	v, err := EvalExpr(n, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestEvalExprCrossedAboveConstant(t *testing.T) {
	// 104 -> 106 crosses a 105 threshold upward, and only upward.
	frames := dailyFrames([]float64{104, 106})

	above := parseNode(t, `{
		"type": "binary", "operator": "crossed_above",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 105}
	}`)
	v, err := EvalExpr(above, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	below := parseNode(t, `{
		"type": "binary", "operator": "crossed_below",
		"left": {"type": "attribute", "field": "close"},
		"right": {"type": "constant", "value": 105}
	}`)
	v, err = EvalExpr(below, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestEvalExprOffsetShiftsIndex(t *testing.T) {
	frames := dailyFrames([]float64{100, 102, 104})

	n := parseNode(t, `{"type": "attribute", "field": "close", "offset": 2}`)
	v, err := EvalExpr(n, frames, -1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestEvalExprNestedFieldNode(t *testing.T) {
	frames := dailyFrames(risingCloses(30))

	// An attribute whose field is itself an indicator node evaluates the
	// indicator at the shifted index.
	nested := parseNode(t, `{
		"type": "attribute", "offset": 1,
		"field": {"type": "indicator", "field": "sma_5", "time_period": 5}
	}`)
	direct := parseNode(t, `{"type": "indicator", "field": "sma_5", "time_period": 5}`)

	got, err := EvalExpr(nested, frames, -1)
	require.NoError(t, err)
	want, err := EvalExpr(direct, frames, -2)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)
}

func TestEvalExprErrors(t *testing.T) {
	frames := dailyFrames([]float64{100})

	_, err := EvalExpr(nil, frames, -1)
	assert.Error(t, err)

	unknownOp := parseNode(t, `{
		"type": "binary", "operator": "%%",
		"left": {"type": "constant", "value": 1},
		"right": {"type": "constant", "value": 1}
	}`)
	_, err = EvalExpr(unknownOp, frames, -1)
	assert.ErrorContains(t, err, "unknown binary operator")

	missingTF := parseNode(t, `{"type": "attribute", "field": "close", "timeframe": "weekly"}`)
	_, err = EvalExpr(missingTF, frames, -1)
	assert.ErrorContains(t, err, "weekly")
}
