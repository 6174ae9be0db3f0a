package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSSIRing(t *testing.T) {
	r := NewRSSIRing(3)
	assert.Nil(t, r.Values())
	assert.Zero(t, r.Last())

	r.Push(-70)
	r.Push(-65)
	assert.Equal(t, []float64{-70, -65}, r.Values())

	r.Push(-60)
	r.Push(-55)
	assert.Equal(t, []float64{-65, -60, -55}, r.Values())
	assert.Equal(t, -55.0, r.Last())
	assert.Equal(t, 3, r.Len())

	r.Reset()
	assert.Nil(t, r.Values())
	assert.Zero(t, r.Len())
}
