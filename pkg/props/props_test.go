package props

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenersFireInRegistrationOrder(t *testing.T) {
	var n Notifier
	var order []string
	n.Listen("a", "alpha", func(string) { order = append(order, "a") })
	n.Listen("b", All, func(string) { order = append(order, "b") })
	n.Listen("c", "alpha", func(string) { order = append(order, "c") })
	n.Listen("d", "beta", func(string) { order = append(order, "d") })

	alpha := New(&n, "alpha", 1.0)
	alpha.Set(0.5)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSetEqualValueIsNoop(t *testing.T) {
	var n Notifier
	calls := 0
	n.Listen("x", "enabled", func(string) { calls++ })
	p := New(&n, "enabled", true)
	assert.False(t, p.Set(true))
	assert.True(t, p.Set(false))
	assert.Equal(t, 1, calls)
}

func TestListenReplacesAndRemove(t *testing.T) {
	var n Notifier
	var got string
	n.Listen("x", "p", func(string) { got = "first" })
	n.Listen("x", "p", func(string) { got = "second" })
	assert.Equal(t, 1, n.NumListeners())
	n.Notify("p")
	assert.Equal(t, "second", got)

	n.Listen("x", "q", func(string) {})
	n.Remove("x", "p")
	assert.False(t, n.HasListener("x", "p"))
	assert.True(t, n.HasListener("x", "q"))
	n.RemoveAll("x")
	assert.Equal(t, 0, n.NumListeners())
}

func TestListenerRemovingItselfDuringDispatch(t *testing.T) {
	var n Notifier
	calls := 0
	n.Listen("once", "p", func(string) {
		calls++
		n.Remove("once", "p")
	})
	n.Notify("p")
	n.Notify("p")
	assert.Equal(t, 1, calls)
}

func TestValueAlwaysNotifies(t *testing.T) {
	var n Notifier
	calls := 0
	n.Listen("x", "lut", func(string) { calls++ })
	v := NewValue(&n, "lut", []int{1})
	v.Set([]int{1})
	v.Set([]int{1, 2})
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1, 2}, v.Get())
}
