package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable_Declare(t *testing.T) {
	table := NewSymbolTable()
	names := []string{"a", "b", "c", "d", "e"}
	for i, name := range names {
		tp := "INTEGER"
		if i%2 == 1 {
			tp = "STRING"
		}
		variable, err := table.Declare(name, tp)
		require.NoError(t, err)
		assert.Equal(t, i, variable.Slot)
	}
	variables := table.Variables()
	require.Len(t, variables, len(names))
	seen := map[int]bool{}
	for i, variable := range variables {
		assert.Equal(t, names[i], variable.Name)
		assert.False(t, seen[variable.Slot])
		seen[variable.Slot] = true
	}
	b, err := table.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, &Variable{Name: "b", Type: TextType, Slot: 1}, b)
	assert.Equal(t, 5, table.MaxLocals())
}

func TestSymbolTable_Errors(t *testing.T) {
	table := NewSymbolTable()
	_, err := table.Declare("x", "INTEGER")
	require.NoError(t, err)

	_, err = table.Declare("x", "STRING")
	var duplicate *DuplicateVariableError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "x", duplicate.Name)

	_, err = table.Declare("f", "FLOAT")
	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "FLOAT", unsupported.Type)

	_, err = table.Lookup("missing")
	var undeclared *UndeclaredVariableError
	require.True(t, errors.As(err, &undeclared))
	assert.Equal(t, "missing", undeclared.Name)

	// failed declarations consume no slot
	y, err := table.Declare("y", "STRING")
	require.NoError(t, err)
	assert.Equal(t, 1, y.Slot)
}

func TestSymbolTable_TempAndReset(t *testing.T) {
	table := NewSymbolTable()
	assert.Equal(t, 1, table.MaxLocals())
	_, err := table.Declare("a", "INTEGER")
	require.NoError(t, err)
	temp := table.Temp()
	assert.Equal(t, 1, temp)
	assert.Equal(t, 2, table.MaxLocals())
	assert.Len(t, table.Variables(), 1)
	b, err := table.Declare("b", "INTEGER")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Slot)

	table.Reset()
	assert.Empty(t, table.Variables())
	_, err = table.Lookup("a")
	assert.NotNil(t, err)
	a, err := table.Declare("a", "STRING")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Slot)
}
