package label_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noddybox/casm-go/label"
)

func TestSetGlobalAndFind(t *testing.T) {
	s := label.New()
	s.Set("start", 0x8000, label.Global)

	v, ok := s.Find("start", label.Global)
	require.True(t, ok)
	assert.Equal(t, 0x8000, v)

	v, ok = s.Find("START", label.Any)
	require.True(t, ok)
	assert.Equal(t, 0x8000, v)
}

func TestLocalsScopedToTheirGlobal(t *testing.T) {
	s := label.New()
	s.Set("one", 0x8000, label.Global)
	s.Set("l", 0x8001, label.Local)

	s.Set("two", 0x9000, label.Global)
	s.Set("l", 0x9001, label.Local)

	s.SetScope("one")
	v, ok := s.Find("l", label.Local)
	require.True(t, ok)
	assert.Equal(t, 0x8001, v)

	s.SetScope("two")
	v, ok = s.Find("l", label.Local)
	require.True(t, ok)
	assert.Equal(t, 0x9001, v)
}

func TestLookupHonorsLeadingDotAsLocal(t *testing.T) {
	s := label.New()
	s.Set("one", 0x8000, label.Global)
	s.Set("l", 0x8001, label.Local)

	v, ok := s.Lookup(".l")
	require.True(t, ok)
	assert.Equal(t, 0x8001, v)

	v, ok = s.Lookup("one")
	require.True(t, ok)
	assert.Equal(t, 0x8000, v)
}

func TestSetLocalWithoutScopeIsNoop(t *testing.T) {
	s := label.New()
	s.Set("l", 1, label.Local)
	_, ok := s.Find("l", label.Local)
	assert.False(t, ok)
}

func TestScopePushPopRestoresCurrentGlobal(t *testing.T) {
	s := label.New()
	s.Set("outer", 0x100, label.Global)

	ns := s.CreateNamespace()
	s.ScopePush(ns, 0x200)
	s.Set("inner", 1, label.Local)

	require.NoError(t, s.ScopePop())

	s.Set("stillouter", 2, label.Local)
	v, ok := s.Find("stillouter", label.Local)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	s.SetScope(ns)
	_, ok = s.Find("inner", label.Local)
	assert.True(t, ok)
}

func TestScopePopUnderflow(t *testing.T) {
	s := label.New()
	assert.Error(t, s.ScopePop())
}

func TestCaseInsensitiveMatching(t *testing.T) {
	s := label.New()
	s.Set("Start", 10, label.Global)
	v, ok := s.Find("START", label.Global)
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestNamespaceDeterministicAcrossResets(t *testing.T) {
	s := label.New()
	first := s.CreateNamespace()
	second := s.CreateNamespace()
	assert.NotEqual(t, first, second)

	s.ResetNamespace()
	afterReset := s.CreateNamespace()
	assert.Equal(t, first, afterReset, "namespace counter must restart deterministically")
}

func TestSanitise(t *testing.T) {
	name, kind, ok := label.Sanitise("start:")
	require.True(t, ok)
	assert.Equal(t, "start", name)
	assert.Equal(t, label.Global, kind)

	name, kind, ok = label.Sanitise(".loop")
	require.True(t, ok)
	assert.Equal(t, "loop", name)
	assert.Equal(t, label.Local, kind)

	_, _, ok = label.Sanitise(".")
	assert.False(t, ok)
}

func TestBlobRoundTrip(t *testing.T) {
	s := label.New()
	s.Set("start", 0x1000, label.Global)
	s.Set("_private", 0x2000, label.Global)

	var buf bytes.Buffer
	require.NoError(t, s.WriteBlob(&buf))

	dst := label.New()
	require.NoError(t, dst.ReadBlob(&buf, 0))

	v, ok := dst.Find("start", label.Global)
	require.True(t, ok)
	assert.Equal(t, 0x1000, v)

	_, ok = dst.Find("_private", label.Global)
	assert.False(t, ok, "private names must be excluded from the blob")
}

func TestBlobRoundTripWithAddressOffset(t *testing.T) {
	s := label.New()
	s.Set("start", 0x1000, label.Global)

	var buf bytes.Buffer
	require.NoError(t, s.WriteBlob(&buf))

	dst := label.New()
	require.NoError(t, dst.ReadBlob(&buf, 0x100))

	v, ok := dst.Find("start", label.Global)
	require.True(t, ok)
	assert.Equal(t, 0x1100, v)
}

func TestClear(t *testing.T) {
	s := label.New()
	s.Set("start", 1, label.Global)
	s.Clear()
	_, ok := s.Find("start", label.Global)
	assert.False(t, ok)
}
