package mapslicehelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestAsKeys(t *testing.T) {
	keys := AsKeys([]string{"state", "province", "state"})
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "state")
	assert.Contains(t, keys, "province")
}

func TestOrderedMapHelpers(t *testing.T) {
	m := orderedmap.New[int, string]()
	m.Set(7, "seven")
	m.Set(3, "three")
	m.Set(12, "twelve")

	assert.Equal(t, []int{7, 3, 12}, OrderedMapKeys(m))
	assert.Equal(t, []string{"seven", "three", "twelve"}, OrderedMapValues(m))
	assert.Equal(t, 16, SumOrderedMap(m, func(v string) int { return len(v) }))

	empty := orderedmap.New[int, string]()
	assert.Empty(t, OrderedMapKeys(empty))
	assert.Equal(t, 0, SumOrderedMap(empty, func(v string) int { return len(v) }))
}
