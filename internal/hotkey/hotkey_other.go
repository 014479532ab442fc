//go:build !windows

package hotkey

// New reports ErrUnsupported; the hook daemon only captures on Windows.
func New(spec Spec) (Hotkey, error) {
	return nil, ErrUnsupported
}
