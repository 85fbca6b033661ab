package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsLastExpressionValue(t *testing.T) {
	v, err := Execute([]byte("1 + 2"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.i)
}

func TestExecuteSurfacesCompileDiagnostics(t *testing.T) {
	_, err := Execute([]byte("print x"), nil)
	require.Error(t, err)
	var d Diagnostics
	assert.ErrorAs(t, err, &d)
}

func TestExecuteSurfacesRuntimeErrors(t *testing.T) {
	_, err := Execute([]byte("1 / 0"), nil)
	require.Error(t, err)
	var re RuntimeError
	assert.ErrorAs(t, err, &re)
}

func TestExecuteAllRunsEveryScriptAndPreservesOrder(t *testing.T) {
	results, err := ExecuteAll(nil,
		Script{Name: "first", Source: []byte("1 + 1")},
		Script{Name: "second", Source: []byte(`"a" ++ "b"`)},
		Script{Name: "third", Source: []byte("3 * 3")},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, int64(2), results[0].Value.i)
	assert.Equal(t, "second", results[1].Name)
	assert.Equal(t, "ab", results[1].Value.s.text)
	assert.Equal(t, "third", results[2].Name)
	assert.Equal(t, int64(9), results[2].Value.i)
}

func TestExecuteAllCapturesPerScriptErrorsWithoutAbortingOthers(t *testing.T) {
	results, err := ExecuteAll(nil,
		Script{Name: "bad", Source: []byte("print undeclared")},
		Script{Name: "good", Source: []byte("42")},
	)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, int64(42), results[1].Value.i)
}

func TestExecuteAllSharesInternTableAcrossConcurrentVMs(t *testing.T) {
	scripts := make([]Script, 0, 20)
	for i := 0; i < 20; i++ {
		scripts = append(scripts, Script{Name: "s", Source: []byte(`"shared"`)})
	}
	results, err := ExecuteAll(nil, scripts...)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "shared", r.Value.s.text)
	}
}
