package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() map[string]interface{} {
	return map[string]interface{}{
		"name": "alice",
		"age":  int64(30),
		"tags": []interface{}{"admin", "ops"},
	}
}

func TestCompileErrors(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.Compile("_.name ==")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation error")

	p, err := e.Compile(`_.missing == "x"`)
	require.NoError(t, err)
	_, err = p.Match(sampleData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval error")
}

func TestPredicateExtensions(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	p, err := e.Compile(`_.name.upperAscii() == "ALICE" && size(_.tags) == _.age - 28`)
	require.NoError(t, err)
	ok, err := p.Match(sampleData())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPredicate(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	p, err := e.Compile(`_.name == "alice" && "admin" in _.tags`)
	require.NoError(t, err)
	assert.Equal(t, `_.name == "alice" && "admin" in _.tags`, p.String())

	ok, err := p.Match(sampleData())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Match(map[string]interface{}{"name": "bob", "tags": []interface{}{}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Match("scalar")
	require.Error(t, err)
}

func TestPredicateRejectsNonBool(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.Compile(`"text"`)
	require.Error(t, err)

	p, err := e.Compile("_.name")
	require.NoError(t, err, "dyn-typed expressions are checked at evaluation time")
	_, err = p.Match(sampleData())
	require.Error(t, err)
}
