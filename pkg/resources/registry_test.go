package resources

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTexture struct {
	name      string
	destroyed int
}

func (f *fakeTexture) Destroy() { f.destroyed++ }

func key(name string) Key { return Key{Kind: "texture", Overlay: 1, Variant: name} }

func TestGetCreatesOnceAndCounts(t *testing.T) {
	r := NewRegistry()
	created := 0
	factory := func() (Resource, error) {
		created++
		return &fakeTexture{name: "a"}, nil
	}

	a, err := r.Get(key("a"), factory)
	require.NoError(t, err)
	b, err := r.Get(key("a"), factory)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, created)
	assert.Equal(t, 2, r.RefCount(key("a")))
}

func TestGetWithoutFactory(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(key("missing"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, r.Exists(key("missing")))
}

func TestFactoryErrorRegistersNothing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(key("a"), func() (Resource, error) { return nil, errors.New("no GPU") })
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestDestroyExactlyOnceAfterBalancedDeletes(t *testing.T) {
	r := NewRegistry()
	tex := &fakeTexture{}
	require.NoError(t, r.Set(key("a"), tex, false))
	for i := 0; i < 3; i++ {
		_, err := r.Get(key("a"), nil)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Delete(key("a")))
		assert.Equal(t, 0, tex.destroyed)
		assert.True(t, r.Exists(key("a")))
	}
	require.NoError(t, r.Delete(key("a")))
	assert.Equal(t, 1, tex.destroyed)
	assert.False(t, r.Exists(key("a")))

	assert.ErrorIs(t, r.Delete(key("a")), ErrNotFound)
	assert.Equal(t, 1, tex.destroyed)
}

func TestSetDuplicateAndOverwrite(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeTexture{name: "1"}, &fakeTexture{name: "2"}
	require.NoError(t, r.Set(key("a"), first, false))
	_, err := r.Get(key("a"), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Set(key("a"), second, false), ErrDuplicate)

	require.NoError(t, r.Set(key("a"), second, true))
	assert.Equal(t, 2, r.RefCount(key("a")))
	got, err := r.Get(key("a"), nil)
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestSharedAndPrivateKeysDiffer(t *testing.T) {
	shared := Key{Kind: "stack", Overlay: 7, Variant: Variant(map[string]any{"zax": 2, "interp": "linear"})}
	private := shared.Private(3)
	assert.NotEqual(t, shared, private)
	assert.Equal(t, "stack_7_canvas3_interp=linear,zax=2", private.String())
	assert.Equal(t, shared, private.Private(0))
}

func TestAcquireTyped(t *testing.T) {
	r := NewRegistry()
	tex, err := Acquire(r, key("a"), func() (*fakeTexture, error) { return &fakeTexture{name: "a"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "a", tex.name)

	type other struct{ fakeTexture }
	_, err = Acquire(r, key("a"), func() (*other, error) { return &other{}, nil })
	assert.Error(t, err)
	assert.Equal(t, 1, r.RefCount(key("a")))
}
