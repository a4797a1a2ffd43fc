// Package props implements observable properties. Listeners fire
// synchronously, in registration order, when a property value changes.
package props

// All is the property name used to listen for changes to any property.
const All = ""

type listener struct {
	name string
	prop string
	fn   func(prop string)
}

// Notifier dispatches property change notifications to registered
// listeners. The zero value is ready to use.
type Notifier struct {
	listeners []listener
}

// Listen registers fn to be called when prop changes. If prop is All, fn is
// called for every property. Registering the same (name, prop) pair twice
// replaces the earlier listener in place.
func (n *Notifier) Listen(name, prop string, fn func(prop string)) {
	for i, l := range n.listeners {
		if l.name == name && l.prop == prop {
			n.listeners[i].fn = fn
			return
		}
	}
	n.listeners = append(n.listeners, listener{name: name, prop: prop, fn: fn})
}

// Remove unregisters the listener registered as (name, prop).
func (n *Notifier) Remove(name, prop string) {
	kept := n.listeners[:0]
	for _, l := range n.listeners {
		if l.name == name && l.prop == prop {
			continue
		}
		kept = append(kept, l)
	}
	n.listeners = kept
}

// RemoveAll unregisters every listener registered under name.
func (n *Notifier) RemoveAll(name string) {
	kept := n.listeners[:0]
	for _, l := range n.listeners {
		if l.name == name {
			continue
		}
		kept = append(kept, l)
	}
	n.listeners = kept
}

// HasListener reports whether a listener is registered as (name, prop).
func (n *Notifier) HasListener(name, prop string) bool {
	for _, l := range n.listeners {
		if l.name == name && l.prop == prop {
			return true
		}
	}
	return false
}

// NumListeners returns the number of registered listeners.
func (n *Notifier) NumListeners() int {
	return len(n.listeners)
}

// Notify calls every listener registered for prop, and every catch-all
// listener. Listeners added or removed during dispatch take effect on the
// next call.
func (n *Notifier) Notify(prop string) {
	snapshot := make([]listener, len(n.listeners))
	copy(snapshot, n.listeners)
	for _, l := range snapshot {
		if l.prop == prop || l.prop == All {
			l.fn(prop)
		}
	}
}

// Prop is a comparable property value which notifies its owner when it
// changes.
type Prop[T comparable] struct {
	name  string
	owner *Notifier
	value T
}

// New creates a property called name, owned by owner.
func New[T comparable](owner *Notifier, name string, value T) *Prop[T] {
	return &Prop[T]{name: name, owner: owner, value: value}
}

// Name returns the property name.
func (p *Prop[T]) Name() string { return p.name }

// Get returns the current value.
func (p *Prop[T]) Get() T { return p.value }

// Set stores v and notifies listeners. Setting an equal value is a no-op.
// The return value reports whether the value changed.
func (p *Prop[T]) Set(v T) bool {
	if p.value == v {
		return false
	}
	p.value = v
	p.owner.Notify(p.name)
	return true
}

// Value is a property holding a non-comparable value (a slice, map or
// pointer to mutable data). Every Set notifies.
type Value[T any] struct {
	name  string
	owner *Notifier
	value T
}

// NewValue creates a non-comparable property called name, owned by owner.
func NewValue[T any](owner *Notifier, name string, value T) *Value[T] {
	return &Value[T]{name: name, owner: owner, value: value}
}

// Name returns the property name.
func (p *Value[T]) Name() string { return p.name }

// Get returns the current value.
func (p *Value[T]) Get() T { return p.value }

// Set stores v and notifies listeners.
func (p *Value[T]) Set(v T) {
	p.value = v
	p.owner.Notify(p.name)
}
