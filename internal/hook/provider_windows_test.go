//go:build windows

package hook

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThreadReusesCallbacks(t *testing.T) {
	w, ok := New(zerolog.Nop()).(*Windows)
	require.True(t, ok)
	require.NotZero(t, w.mouseCB)
	require.NotZero(t, w.keyboardCB)

	first := w.newThread(WH_MOUSE_LL)
	retry := w.newThread(WH_MOUSE_LL)
	assert.Equal(t, first.proc, retry.proc, "a retried install must not allocate a new callback")
	assert.Equal(t, w.mouseCB, retry.proc)
	assert.Equal(t, "mouse", retry.name)

	kb := w.newThread(WH_KEYBOARD_LL)
	assert.Equal(t, w.keyboardCB, kb.proc)
	assert.Equal(t, "keyboard", kb.name)
	assert.NotEqual(t, w.mouseCB, w.keyboardCB)
}
