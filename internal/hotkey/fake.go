package hotkey

// FakeHotkey is a Hotkey driven by tests.
type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	Registered   bool
	Unregistered chan struct{}
	RegisterErr  error
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown:      make(chan struct{}, 1),
		keyup:        make(chan struct{}, 1),
		Unregistered: make(chan struct{}),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registered = true
	return nil
}

func (f *FakeHotkey) Unregister()              { close(f.Unregistered) }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }
