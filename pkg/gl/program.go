package gl

import (
	"fmt"
	"reflect"
)

// Program wraps a compiled shader program, caching uniform values so
// that unchanged values are not re-sent to the GPU.
type Program struct {
	backend  Backend
	name     string
	id       uint32
	cache    map[string]any
	loaded   bool
	released bool
}

// NewProgram compiles a program from GLSL sources.
func NewProgram(b Backend, name, vertex, fragment string) (*Program, error) {
	id, err := b.NewProgram(name, vertex, fragment)
	if err != nil {
		return nil, err
	}
	return &Program{backend: b, name: name, id: id, cache: map[string]any{}}, nil
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// ID returns the backend program handle.
func (p *Program) ID() uint32 { return p.id }

// Ready reports whether the program can be used.
func (p *Program) Ready() bool { return p != nil && !p.released }

// Load makes the program current.
func (p *Program) Load() {
	p.backend.UseProgram(p.id)
	p.loaded = true
}

// Unload clears the current program.
func (p *Program) Unload() {
	p.backend.UseProgram(0)
	p.loaded = false
}

// Set sets a uniform value. It reports whether the value was sent, i.e.
// whether it differed from the cached value.
func (p *Program) Set(name string, value any) (bool, error) {
	if p.released {
		return false, fmt.Errorf("program %s: set %s after destroy", p.name, name)
	}
	if old, ok := p.cache[name]; ok && reflect.DeepEqual(old, value) {
		return false, nil
	}
	if err := p.backend.SetUniform(p.id, name, value); err != nil {
		return false, fmt.Errorf("program %s: %w", p.name, err)
	}
	p.cache[name] = value
	return true, nil
}

// SetAll sets several uniforms, stopping at the first error.
func (p *Program) SetAll(values map[string]any) error {
	for name, v := range values {
		if _, err := p.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Destroy deletes the program. It is safe to call more than once.
func (p *Program) Destroy() {
	if p == nil || p.released {
		return
	}
	p.backend.DeleteProgram(p.id)
	p.released = true
}
