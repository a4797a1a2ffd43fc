package texdata

import (
	"sync"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// FloatProbe memoizes whether float textures are usable for a given
// number of channels. The probe function runs at most once per channel
// count.
type FloatProbe struct {
	probe func(nvals int) bool

	mu    sync.Mutex
	cache map[int]bool
}

// NewFloatProbe returns a FloatProbe around fn.
func NewFloatProbe(fn func(nvals int) bool) *FloatProbe {
	return &FloatProbe{probe: fn, cache: map[int]bool{}}
}

// BackendProbe returns a FloatProbe answering from the backend
// capabilities.
func BackendProbe(b gl.Backend) *FloatProbe {
	return NewFloatProbe(func(nvals int) bool {
		if !b.Caps().FloatTextures {
			return false
		}
		_, err := gl.FormatForChannels(nvals)
		return err == nil
	})
}

// Supported reports whether float textures with nvals channels can be
// used.
func (p *FloatProbe) Supported(nvals int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, seen := p.cache[nvals]
	if !seen {
		ok = p.probe(nvals)
		p.cache[nvals] = ok
	}
	return ok
}
