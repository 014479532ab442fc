//go:build !windows

package hook

import (
	"runtime"

	"github.com/rs/zerolog"
)

// Unsupported is the provider for platforms without low-level hooks. Every
// install fails, so subscriptions on these platforms report InstallFailure.
type Unsupported struct {
	log zerolog.Logger
}

// New returns the provider for this platform.
func New(log zerolog.Logger) Provider {
	return &Unsupported{log: log.With().Str("component", "hook").Logger()}
}

func (u *Unsupported) InstallMouseHook(MouseFunc) bool {
	u.log.Warn().Str("os", runtime.GOOS).Msg("global mouse hooks are not supported on this platform")
	return false
}

func (u *Unsupported) InstallKeyboardHook(KeyboardFunc) bool {
	u.log.Warn().Str("os", runtime.GOOS).Msg("global keyboard hooks are not supported on this platform")
	return false
}

func (u *Unsupported) EnableMouseMove()     {}
func (u *Unsupported) DisableMouseMove()    {}
func (u *Unsupported) PauseMouse() bool     { return false }
func (u *Unsupported) ResumeMouse() bool    { return false }
func (u *Unsupported) PauseKeyboard() bool  { return false }
func (u *Unsupported) ResumeKeyboard() bool { return false }
