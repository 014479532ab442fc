package tray

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"globalmkh/internal/input"
)

func TestMenuTitle(t *testing.T) {
	assert.Equal(t, "Pause mouse", menuTitle(input.Mouse, false))
	assert.Equal(t, "Resume keyboard", menuTitle(input.Keyboard, true))
}

func TestSolidIcon(t *testing.T) {
	icon := solidIcon(0x11, 0x22, 0x33)
	assert.Len(t, icon, 22+40+1024+64)

	size := binary.LittleEndian.Uint32(icon[14:18])
	offset := binary.LittleEndian.Uint32(icon[18:22])
	assert.Equal(t, uint32(len(icon)), size+offset, "directory entry covers the image")

	first := icon[62:66]
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0xff}, first)
	assert.NotEqual(t, activeIcon, pausedIcon)
}
