// Package input turns raw hook callbacks into typed keyboard and mouse events
// and installs hooks lazily as consumers subscribe.
package input

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category groups event names that share one hook installation.
type Category string

const (
	Mouse    Category = "mouse"
	Keyboard Category = "keyboard"
)

// Categories lists every category in a fixed order.
var Categories = []Category{Mouse, Keyboard}

// EventName identifies a logical event consumers subscribe to.
type EventName string

const (
	KeyUp      EventName = "keyup"
	KeyDown    EventName = "keydown"
	MouseUp    EventName = "mouseup"
	MouseDown  EventName = "mousedown"
	MouseMove  EventName = "mousemove"
	MouseWheel EventName = "mousewheel"
)

// EventNames lists every event name in a fixed order.
var EventNames = []EventName{KeyUp, KeyDown, MouseUp, MouseDown, MouseMove, MouseWheel}

var categoryOf = map[EventName]Category{
	KeyUp:      Keyboard,
	KeyDown:    Keyboard,
	MouseUp:    Mouse,
	MouseDown:  Mouse,
	MouseMove:  Mouse,
	MouseWheel: Mouse,
}

var (
	// ErrUnknownEvent is returned for names outside EventNames.
	ErrUnknownEvent = errors.New("unknown event name")
	// ErrUnknownCategory is returned for categories outside Categories.
	ErrUnknownCategory = errors.New("unknown event category")
	// ErrInstallFailed is returned when the provider declines to install a hook.
	ErrInstallFailed = errors.New("hook installation failed")
	// ErrProviderRejected is returned when the provider refuses a pause or resume.
	ErrProviderRejected = errors.New("hook provider rejected the request")
)

// CategoryOf returns the category of name.
func CategoryOf(name EventName) (Category, bool) {
	c, ok := categoryOf[name]
	return c, ok
}

// ParseEventName validates s as an event name. Matching is case-insensitive.
func ParseEventName(s string) (EventName, error) {
	name := EventName(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categoryOf[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return name, nil
}

// ParseCategory validates s as a category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Mouse, Keyboard:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// MouseEvent is the payload of mouse events. Button is set for mousedown and
// mouseup, Delta and Axis for mousewheel.
type MouseEvent struct {
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Button *int     `json:"button,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
	Axis   *int     `json:"axis,omitempty"`
}

// KeyboardEvent is the payload of key events. CrazyCombination is set on
// keyup only and is forwarded from the provider unchanged.
type KeyboardEvent struct {
	KeyName          string `json:"keyName"`
	Combination      string `json:"combination"`
	ShiftKey         bool   `json:"shiftKey"`
	CtrlKey          bool   `json:"ctrlKey"`
	AltKey           bool   `json:"altKey"`
	MetaKey          bool   `json:"metaKey"`
	CrazyCombination *bool  `json:"crazyCombination,omitempty"`
}

// Event is one published event. Exactly one of Mouse and Keyboard is set.
type Event struct {
	Name     EventName      `json:"name"`
	Time     time.Time      `json:"time"`
	Mouse    *MouseEvent    `json:"mouse,omitempty"`
	Keyboard *KeyboardEvent `json:"keyboard,omitempty"`
}

// Category returns the category of the event.
func (e Event) Category() Category {
	return categoryOf[e.Name]
}
