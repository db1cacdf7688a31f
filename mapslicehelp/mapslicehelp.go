package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"
)

func AsKeys[T constraints.Ordered](elements []T) map[T]any {
	mapped := make(map[T]any, len(elements))
	for _, element := range elements {
		mapped[element] = struct{}{}
	}
	return mapped
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

func OrderedMapValues[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []V {
	l := make([]V, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Value
		i++
	}
	return l
}

// SumOrderedMap adds up f over the values, oldest first.
func SumOrderedMap[K comparable, V any, N constraints.Integer | constraints.Float](m *orderedmap.OrderedMap[K, V], f func(V) N) N {
	var sum N
	for p := m.Oldest(); p != nil; p = p.Next() {
		sum += f(p.Value)
	}
	return sum
}
