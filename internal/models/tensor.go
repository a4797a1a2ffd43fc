package models

import "fmt"

// TensorImage is a diffusion tensor field, stored as its eigen
// decomposition: three eigenvector images (3 volumes each) and three
// eigenvalue images (1 volume each), all with the same spatial shape.
type TensorImage struct {
	id   uint64
	name string

	V1, V2, V3 *Image
	L1, L2, L3 *Image
}

// NewTensorImage groups six images into a tensor field.
func NewTensorImage(name string, v1, v2, v3, l1, l2, l3 *Image) (*TensorImage, error) {
	shape := l1.Shape3()
	for _, v := range []*Image{v1, v2, v3} {
		if v.Shape3() != shape || v.NumVolumes() != 3 {
			return nil, fmt.Errorf("tensor %s: eigenvector image %s has shape %v", name, v.Name(), v.Shape)
		}
	}
	for _, l := range []*Image{l2, l3} {
		if l.Shape3() != shape {
			return nil, fmt.Errorf("tensor %s: eigenvalue image %s has shape %v", name, l.Name(), l.Shape)
		}
	}
	return &TensorImage{
		id:   nextID(),
		name: name,
		V1:   v1, V2: v2, V3: v3,
		L1: l1, L2: l2, L3: l3,
	}, nil
}

// ID implements Overlay.
func (t *TensorImage) ID() uint64 { return t.id }

// Name implements Overlay.
func (t *TensorImage) Name() string { return t.name }

// Bounds implements Overlay.
func (t *TensorImage) Bounds() Bounds { return t.L1.Bounds() }

// Reference returns the image which defines the tensor field geometry.
func (t *TensorImage) Reference() *Image { return t.L1 }

// Eigenvectors returns V1, V2 and V3.
func (t *TensorImage) Eigenvectors() [3]*Image { return [3]*Image{t.V1, t.V2, t.V3} }

// Eigenvalues returns L1, L2 and L3.
func (t *TensorImage) Eigenvalues() [3]*Image { return [3]*Image{t.L1, t.L2, t.L3} }
