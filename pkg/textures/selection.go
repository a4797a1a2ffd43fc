package textures

import (
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// SelectionTexture is a 3D texture mirroring a voxel Selection. It
// re-uploads whenever the selection changes.
type SelectionTexture struct {
	*Texture
	selection *models.Selection
}

// NewSelectionTexture creates a texture for sel and uploads its contents.
func NewSelectionTexture(b gl.Backend, name string, sel *models.Selection) (*SelectionTexture, error) {
	t := &SelectionTexture{Texture: newTexture(b, name), selection: sel}
	if err := t.Refresh(); err != nil {
		return nil, err
	}
	sel.Notifier().Listen(name, models.SelectionProp, func(string) { _ = t.Refresh() })
	return t, nil
}

// Selection returns the selection.
func (t *SelectionTexture) Selection() *models.Selection { return t.selection }

// Refresh uploads the selection mask. Mask values are 0 or 255.
func (t *SelectionTexture) Refresh() error {
	mask := t.selection.Mask()
	data := make([]byte, len(mask))
	for i, v := range mask {
		if v != 0 {
			data[i] = 255
		}
	}
	t.selection.Dirty()
	return t.upload(gl.TextureDesc{
		Target:   gl.Texture3D,
		Shape:    t.selection.Shape(),
		Type:     gl.UnsignedByte,
		Format:   gl.Luminance,
		Internal: gl.Luminance8,
		Filter:   gl.Nearest,
	}, data)
}

// Destroy releases the texture and stops listening to the selection.
func (t *SelectionTexture) Destroy() {
	t.selection.Notifier().RemoveAll(t.name)
	t.Texture.Destroy()
}
