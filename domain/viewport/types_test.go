package viewport

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainJSONRoundTrip(t *testing.T) {
	state := State{X: AutoDomain(), Y: Fixed(-1.5, 3), Tool: ToolPan}
	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x_domain":"auto","y_domain":[-1.5,3],"active_tool":"pan"}`, string(data))

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, state, back)
}

func TestDomainUnmarshalLegacyAutoPair(t *testing.T) {
	var d Domain
	require.NoError(t, json.Unmarshal([]byte(`["auto","auto"]`), &d))
	assert.True(t, d.Auto)

	require.NoError(t, json.Unmarshal([]byte(`[10, 0]`), &d))
	assert.Equal(t, Fixed(0, 10), d)

	assert.Error(t, json.Unmarshal([]byte(`"fit"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &d))
}

func TestFixedOrdersBounds(t *testing.T) {
	d := Fixed(5, 1)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, 4.0, d.Span())
	assert.True(t, d.Contains(1))
	assert.True(t, d.Contains(5))
	assert.False(t, d.Contains(5.01))
	assert.True(t, AutoDomain().Contains(1e9))
}

func TestDomainValid(t *testing.T) {
	assert.True(t, AutoDomain().Valid())
	assert.True(t, Fixed(3, 3).Valid())
	assert.False(t, Domain{Min: 2, Max: 1}.Valid())
	assert.False(t, Domain{Min: math.Inf(-1), Max: 1}.Valid())
	assert.False(t, Domain{Min: 0, Max: math.NaN()}.Valid())
}

func TestToolValid(t *testing.T) {
	assert.True(t, ToolNone.Valid())
	assert.True(t, ToolSelect.Valid())
	assert.False(t, Tool("lasso").Valid())
}
