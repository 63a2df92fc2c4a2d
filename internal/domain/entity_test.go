package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBrand  EntityType = "brand"
	testAspect EntityType = "aspect"
	testRegion EntityType = "region"
)

func TestNewEntityValueCombination(t *testing.T) {
	evc, err := NewEntityValueCombination(
		EntityValue{Type: testBrand, Value: 1},
		EntityValue{Type: testAspect, Value: 7},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, evc.Len())
	assert.Equal(t, []EntityType{testBrand, testAspect}, evc.Types())

	v, ok := evc.Get(testAspect)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.False(t, evc.Has(testRegion))

	_, err = NewEntityValueCombination(
		EntityValue{Type: testBrand, Value: 1},
		EntityValue{Type: testBrand, Value: 2},
	)
	assert.ErrorIs(t, err, ErrInvalidEntityCombination)
	assert.Panics(t, func() {
		MustEntityValueCombination(EntityValue{Type: testBrand}, EntityValue{Type: testBrand})
	})
}

func TestEntityValueCombination_WithAdditionalValues(t *testing.T) {
	base := MustEntityValueCombination(EntityValue{Type: testBrand, Value: 1})

	merged := base.WithAdditionalValues(
		EntityValue{Type: testBrand, Value: 9},
		EntityValue{Type: testAspect, Value: 7},
		EntityValue{Type: testAspect, Value: 8},
	)

	assert.Equal(t, []EntityValue{{Type: testBrand, Value: 1}, {Type: testAspect, Value: 7}}, merged.Values(),
		"existing values win and each type appears once")
	assert.Equal(t, 1, base.Len(), "receiver is unchanged")
}

func TestEntityValueCombination_RestrictAndKey(t *testing.T) {
	a := MustEntityValueCombination(
		EntityValue{Type: testBrand, Value: 1},
		EntityValue{Type: testAspect, Value: 7},
		EntityValue{Type: testRegion, Value: 2},
	)
	b := MustEntityValueCombination(
		EntityValue{Type: testRegion, Value: 2},
		EntityValue{Type: testAspect, Value: 7},
		EntityValue{Type: testBrand, Value: 1},
	)
	assert.Equal(t, a.Key(), b.Key(), "key ignores order")
	assert.Equal(t, "{aspect=7,brand=1,region=2}", a.String())

	restricted := a.Restrict([]EntityType{testAspect, "missing", testBrand})
	assert.Equal(t, []EntityType{testAspect, testBrand}, restricted.Types())
	assert.Equal(t, "", a.Restrict(nil).Key())
}

func TestEntityValueCombination_ValuesIsCopy(t *testing.T) {
	evc := MustEntityValueCombination(EntityValue{Type: testBrand, Value: 1})
	values := evc.Values()
	values[0].Value = 99

	v, _ := evc.Get(testBrand)
	assert.Equal(t, 1, v)
}
