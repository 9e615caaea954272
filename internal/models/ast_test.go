package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASTNodeDecodesBinaryTree(t *testing.T) {
	raw := `{
		"type": "binary",
		"operator": ">",
		"left": {"type": "attribute", "field": "close", "timeframe": "daily"},
		"right": {"type": "indicator", "field": "SMA", "time_period": 50}
	}`
	var n ASTNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, NodeBinary, n.Type)
	assert.Equal(t, ">", n.Operator)
	require.NotNil(t, n.Left)
	assert.Equal(t, "close", n.Left.Field)
	require.NotNil(t, n.Right)
	assert.Equal(t, 50, n.Right.TimePeriod)
}

func TestASTNodeNestedFieldObject(t *testing.T) {
	raw := `{
		"type": "attribute",
		"offset": 1,
		"field": {"type": "indicator", "field": "rsi_14", "time_period": 14}
	}`
	var n ASTNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Empty(t, n.Field)
	require.NotNil(t, n.FieldNode)
	assert.Equal(t, NodeIndicator, n.FieldNode.Type)
	assert.Equal(t, "rsi_14", n.FieldNode.Field)
}

func TestASTNodeInlineParams(t *testing.T) {
	raw := `{"type": "indicator", "field": "MACD_SIGNAL", "fast": 8, "slow": 21, "signal": 5}`
	var n ASTNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, 8.0, n.Params["fast"])
	assert.Equal(t, 21.0, n.Params["slow"])
	assert.Equal(t, 5.0, n.Params["signal"])
}

func TestASTNodeTimeframeCollection(t *testing.T) {
	raw := `{
		"type": "binary",
		"operator": "crossed_above",
		"left": {"type": "attribute", "field": "close", "timeframe": "15min"},
		"right": {"type": "indicator", "field": "sma_20", "timeframe": "weekly"}
	}`
	var n ASTNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	tfs := map[string]struct{}{}
	n.Timeframes(tfs)
	assert.Contains(t, tfs, "15min")
	assert.Contains(t, tfs, "weekly")
	assert.Len(t, tfs, 2)
}
