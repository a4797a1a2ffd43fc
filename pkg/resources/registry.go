// Package resources implements a reference counted registry for expensive
// shared GPU resources such as image textures and render texture stacks.
//
// Every successful Get or (non-overwriting) Set must be paired with
// exactly one Delete. A resource is destroyed inside the Delete call which
// drops its reference count to zero, and never anywhere else.
package resources

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
)

var (
	// ErrNotFound is returned when a key is not in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when registering a key which already exists.
	ErrDuplicate = errors.New("resource already exists")
)

// Resource is anything which holds memory that must be released
// explicitly.
type Resource interface {
	Destroy()
}

// Key identifies a shared resource. Keys are compared structurally, so
// two canvases which build the same key share one resource.
type Key struct {
	// Kind names the resource type, e.g. "imagetexture".
	Kind string

	// Overlay is the ID of the overlay the resource is derived from.
	Overlay uint64

	// Owner is zero for resources shared between canvases, and the ID
	// of the owning canvas for private resources.
	Owner uint64

	// Variant encodes the option values the resource depends on.
	Variant string
}

// Private returns a copy of k owned by owner.
func (k Key) Private(owner uint64) Key {
	k.Owner = owner
	return k
}

func (k Key) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s_%d", k.Kind, k.Overlay)
	if k.Owner != 0 {
		fmt.Fprintf(&sb, "_canvas%d", k.Owner)
	}
	if k.Variant != "" {
		sb.WriteString("_")
		sb.WriteString(k.Variant)
	}
	return sb.String()
}

// Variant builds a deterministic variant string from option values.
func Variant(kv map[string]any) string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, kv[k])
	}
	return strings.Join(parts, ",")
}

type entry struct {
	res  Resource
	refs int
}

// Registry holds shared resources. It is owned by the application and
// passed to every canvas; it is not safe for concurrent use, as all GL
// work happens on one thread.
type Registry struct {
	entries map[Key]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[Key]*entry{}}
}

// Get returns the resource registered under key, incrementing its
// reference count. If key is absent and factory is non-nil, the resource
// is created, registered with a count of one and returned. If key is absent
// and factory is nil, ErrNotFound is returned.
func (r *Registry) Get(key Key, factory func() (Resource, error)) (Resource, error) {
	if e, ok := r.entries[key]; ok {
		e.refs++
		logx.Logger().Debug("resource acquired", "key", key.String(), "refs", e.refs)
		return e.res, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	res, err := factory()
	if err != nil {
		return nil, fmt.Errorf("creating resource %s: %w", key, err)
	}
	r.entries[key] = &entry{res: res, refs: 1}
	logx.Logger().Debug("resource created", "key", key.String())
	return res, nil
}

// Set registers res under key with a reference count of one. If
// overwrite is false and key exists, ErrDuplicate is returned. If
// overwrite is true and key exists, the stored resource is replaced and
// the reference count is left as it is.
func (r *Registry) Set(key Key, res Resource, overwrite bool) error {
	e, ok := r.entries[key]
	if ok && !overwrite {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	if ok {
		e.res = res
		return nil
	}
	r.entries[key] = &entry{res: res, refs: 1}
	return nil
}

// Delete decrements the reference count of key, destroying and removing
// the resource when it reaches zero.
func (r *Registry) Delete(key Key) error {
	e, ok := r.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	e.refs--
	if e.refs > 0 {
		logx.Logger().Debug("resource released", "key", key.String(), "refs", e.refs)
		return nil
	}
	delete(r.entries, key)
	logx.Logger().Debug("resource destroyed", "key", key.String())
	e.res.Destroy()
	return nil
}

// Exists reports whether key is registered.
func (r *Registry) Exists(key Key) bool {
	_, ok := r.entries[key]
	return ok
}

// RefCount returns the reference count of key, or zero if it is absent.
func (r *Registry) RefCount(key Key) int {
	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of registered resources.
func (r *Registry) Len() int { return len(r.entries) }

// Acquire is a typed wrapper around Registry.Get.
func Acquire[T Resource](r *Registry, key Key, factory func() (T, error)) (T, error) {
	var zero T
	var f func() (Resource, error)
	if factory != nil {
		f = func() (Resource, error) {
			res, err := factory()
			if err != nil {
				return nil, err
			}
			return res, nil
		}
	}
	res, err := r.Get(key, f)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		// the count was incremented by Get, so give it back
		_ = r.Delete(key)
		return zero, fmt.Errorf("resource %s has type %T, not %T", key, res, zero)
	}
	return typed, nil
}
