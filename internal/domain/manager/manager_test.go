package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAssignment(t *testing.T) {
	ids, err := ValidateAssignment([]int64{5, 2, 5, 9})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, ids)

	_, err = ValidateAssignment(nil)
	assert.ErrorIs(t, err, ErrEmptyAssignment)

	_, err = ValidateAssignment([]int64{})
	assert.ErrorIs(t, err, ErrEmptyAssignment)

	_, err = ValidateAssignment([]int64{3, 0})
	assert.ErrorIs(t, err, ErrUnknownClinic)
}

func TestScope(t *testing.T) {
	s := Scope{ManagerID: 1, ClinicIDs: []int64{2, 4}}

	assert.True(t, s.Allows(2))
	assert.False(t, s.Allows(3))
	assert.False(t, s.Empty())

	all, err := s.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, all)

	four := int64(4)
	one, err := s.Resolve(&four)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, one)

	other := int64(7)
	_, err = s.Resolve(&other)
	assert.ErrorIs(t, err, ErrOutOfScope)

	assert.True(t, Scope{ManagerID: 1}.Empty())
}
