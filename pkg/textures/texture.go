// Package textures implements the GPU textures used by GLObjects and
// canvases: image data textures, colour map and lookup table textures,
// selection masks, offscreen render textures and pre-rendered texture
// stacks.
package textures

import (
	"errors"
	"fmt"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// ErrUnsupportedTextureSize is returned when data is larger than the
// maximum texture size of the GL context.
var ErrUnsupportedTextureSize = errors.New("unsupported texture size")

// SizeError describes a texture which exceeds the GPU limits.
type SizeError struct {
	Name  string
	Shape [3]int
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("texture %s: shape %v exceeds maximum size %d", e.Name, e.Shape, e.Limit)
}

// Unwrap returns ErrUnsupportedTextureSize.
func (e *SizeError) Unwrap() error { return ErrUnsupportedTextureSize }

// CheckSize returns a *SizeError if a texture of the given target and
// shape cannot be created with caps.
func CheckSize(caps gl.Caps, name string, target gl.TextureTarget, shape [3]int) error {
	limit := caps.MaxTextureSize
	if target == gl.Texture3D {
		limit = caps.Max3DTextureSize
	}
	for _, s := range shape {
		if limit > 0 && s > limit {
			return &SizeError{Name: name, Shape: shape, Limit: limit}
		}
	}
	return nil
}

// Texture is a single GL texture. The zero ID means that no GL texture has
// been created yet.
type Texture struct {
	name      string
	backend   gl.Backend
	id        uint32
	desc      gl.TextureDesc
	ready     bool
	destroyed bool
}

func newTexture(b gl.Backend, name string) *Texture {
	return &Texture{name: name, backend: b}
}

// Name returns the texture name.
func (t *Texture) Name() string { return t.name }

// ID returns the GL texture handle.
func (t *Texture) ID() uint32 { return t.id }

// Desc returns the storage description of the current data.
func (t *Texture) Desc() gl.TextureDesc { return t.desc }

// Ready reports whether the texture holds data and can be used.
func (t *Texture) Ready() bool { return t.ready && !t.destroyed }

// Destroyed reports whether Destroy has been called.
func (t *Texture) Destroyed() bool { return t.destroyed }

// Bind binds the texture to a texture unit.
func (t *Texture) Bind(unit int) {
	t.backend.BindTexture(unit, t.desc.Target, t.id)
}

// Unbind clears a texture unit.
func (t *Texture) Unbind(unit int) {
	t.backend.BindTexture(unit, t.desc.Target, 0)
}

// upload stores data in the texture, recreating the GL texture when the
// storage description changes.
func (t *Texture) upload(desc gl.TextureDesc, data []byte) error {
	if t.destroyed {
		return fmt.Errorf("texture %s has been destroyed", t.name)
	}
	if err := CheckSize(t.backend.Caps(), t.name, desc.Target, desc.Shape); err != nil {
		return err
	}
	if t.id == 0 || desc != t.desc {
		if t.id != 0 {
			t.backend.DeleteTexture(t.id)
			t.id = 0
		}
		id, err := t.backend.NewTexture(desc)
		if err != nil {
			return fmt.Errorf("texture %s: %w", t.name, err)
		}
		t.id = id
		t.desc = desc
	}
	if err := t.backend.SetTextureData(t.id, desc, data); err != nil {
		return fmt.Errorf("texture %s: %w", t.name, err)
	}
	t.ready = true
	return nil
}

// Destroy deletes the GL texture. It is safe to call more than once.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.ready = false
	if t.id != 0 {
		t.backend.DeleteTexture(t.id)
		logx.Logger().Debug("texture destroyed", "texture", t.name, "id", t.id)
		t.id = 0
	}
}
