package attachment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Eager(t *testing.T) {
	data, err := Load(Eager("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = Load(Eager(nil))
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

func TestLoad_Lazy(t *testing.T) {
	calls := 0
	h := NewDeferred(func() ([]byte, error) {
		calls++
		return []byte("lazy"), nil
	})
	obj := Lazy{Handle: h}

	assert.True(t, IsDeferred(obj))
	assert.False(t, Loaded(obj))

	data, err := Load(obj)
	require.NoError(t, err)
	assert.Equal(t, []byte("lazy"), data)
	assert.True(t, Loaded(obj))

	_, err = Load(obj)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoad_LazyFailure(t *testing.T) {
	cause := errors.New("disk on fire")
	h := NewDeferred(func() ([]byte, error) { return nil, cause })

	_, err := Load(Lazy{Handle: h})
	assert.ErrorIs(t, err, cause)
	assert.False(t, h.Loaded())
}

func TestLoad_NilHandle(t *testing.T) {
	_, err := Load(Lazy{})
	assert.Error(t, err)
	assert.False(t, Loaded(Lazy{}))
}

func TestIsDeferred(t *testing.T) {
	assert.False(t, IsDeferred(Eager("x")))
	assert.True(t, IsDeferred(Lazy{Handle: NewDeferred(nil)}))
	assert.True(t, Loaded(Eager("x")))
}

func TestLoadError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &LoadError{ContentID: "part-1@example.org", Err: cause}

	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "part-1@example.org")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWrapLoadError(t *testing.T) {
	assert.NoError(t, WrapLoadError("a", nil))

	wrapped := WrapLoadError("a", errors.New("boom"))
	var le *LoadError
	require.ErrorAs(t, wrapped, &le)
	assert.Equal(t, "a", le.ContentID)

	again := WrapLoadError("b", wrapped)
	require.ErrorAs(t, again, &le)
	assert.Equal(t, "a", le.ContentID)

	notFound := WrapLoadError("c", ErrNotFound)
	assert.Equal(t, ErrNotFound, notFound)
}

func TestParts(t *testing.T) {
	parts := Parts{
		"a@example.org": []byte("A"),
		"empty":         nil,
	}

	assert.True(t, parts.IsLoaded("a@example.org"))
	assert.False(t, parts.IsLoaded("missing"))

	data, err := parts.Get("a@example.org")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), data)

	data, err = parts.Get("empty")
	require.NoError(t, err)
	assert.NotNil(t, data)

	_, err = parts.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartHandle(t *testing.T) {
	parts := Parts{"a": []byte("A")}

	h := PartHandle(parts, "a")
	assert.True(t, h.Loaded())
	data, err := h.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), data)

	missing := PartHandle(parts, "b")
	assert.False(t, missing.Loaded())
	_, err = missing.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmpty(t *testing.T) {
	assert.False(t, Empty.IsLoaded("anything"))
	_, err := Empty.Get("anything")
	assert.ErrorIs(t, err, ErrNotFound)
}
