package input

import (
	"time"

	"globalmkh/internal/hook"
)

const (
	wheelDeltaUnit = 120     // one wheel notch
	wheelFixedOne  = 1 << 16 // mouseData carries the delta in its high word
)

// WheelDelta converts the raw 32-bit mouseData word of a wheel event into
// notches. The raw value is reduced modulo 2^32 and re-signed as a
// two's-complement int32 before scaling.
func WheelDelta(raw int64) float64 {
	const span = 1 << 32
	u := raw - floorDiv(raw, span)*span
	if u >= 1<<31 {
		u -= span
	}
	return float64(u) / wheelFixedOne / wheelDeltaUnit
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// DecodeMouse builds a mouse event from raw hook arguments. ok is false for
// kinds that are not mouse events.
func DecodeMouse(kind string, x, y, button int, rawDelta int64, at time.Time) (ev Event, ok bool) {
	payload := &MouseEvent{X: x, Y: y}

	switch kind {
	case hook.KindMouseWheel:
		delta := WheelDelta(rawDelta)
		axis := button
		payload.Delta = &delta
		payload.Axis = &axis
	case hook.KindMouseDown, hook.KindMouseUp:
		b := button
		payload.Button = &b
	case hook.KindMouseMove:
	default:
		return Event{}, false
	}

	return Event{Name: EventName(kind), Time: at, Mouse: payload}, true
}

// DecodeKeyboard builds a key event from raw hook arguments. ok is false for
// kinds that are not key events.
func DecodeKeyboard(kind, keyName string, shift, ctrl, alt, meta, crazy bool, at time.Time) (ev Event, ok bool) {
	if kind != hook.KindKeyDown && kind != hook.KindKeyUp {
		return Event{}, false
	}

	payload := &KeyboardEvent{
		KeyName:     keyName,
		Combination: Combination(keyName, shift, ctrl, alt),
		ShiftKey:    shift,
		CtrlKey:     ctrl,
		AltKey:      alt,
		MetaKey:     meta,
	}
	if kind == hook.KindKeyUp {
		c := crazy
		payload.CrazyCombination = &c
	}

	return Event{Name: EventName(kind), Time: at, Keyboard: payload}, true
}
