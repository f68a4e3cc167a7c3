package lifecycle

import (
	"fmt"

	"appframe/internal/events"
	"appframe/internal/logging"
)

// Window event names.
const (
	EventOpen  = "open"
	EventClose = "close"
)

// Window is the surface a controller presents.
type Window interface {
	ID() string
	Once(name string, h events.Handler) *events.Subscription
	SetShowSideMenu(show bool)
}

// KeyboardPanner is implemented by close event sources that track keyboard
// panning.
type KeyboardPanner interface {
	SetKeyboardPanning(enabled bool)
}

// WindowManager opens and closes windows.
type WindowManager interface {
	Open(win Window) error
	Close(win Window) error
}

// ContextRegistry associates open windows with their host context.
type ContextRegistry interface {
	Register(windowID string, host any)
	Unregister(windowID string)
}

// Controller is what a factory creates.
type Controller interface {
	View() Window
	Destroy(evt events.Event)
}

// Constructor is implemented by controllers with a construct hook.
type Constructor interface {
	Construct(cfg Config)
}

// Destructor is implemented by controllers with a destruct hook.
type Destructor interface {
	Destruct(evt events.Event)
}

// Config is passed to the factory and drives window handling.
// Args is handed to the underlying factory untouched.
type Config struct {
	ShowSideMenu *bool
	TabGroupRoot bool
	OnOpen       func(*Managed)
	OnClose      func(*Managed)
	Args         map[string]any
}

// Factory creates a controller by name.
type Factory func(name string, cfg Config) (Controller, error)

// WidgetFactory creates a widget by name for an optional parent controller.
type WidgetFactory func(name string, parent Controller, cfg Config) (Controller, error)

// ManagedFactory is a Factory returning managed controllers.
type ManagedFactory func(name string, cfg Config) (*Managed, error)

// ManagedWidgetFactory is a WidgetFactory returning managed widgets.
type ManagedWidgetFactory func(name string, parent Controller, cfg Config) (*Managed, error)

// Manager wraps factories.
type Manager struct {
	windows  WindowManager
	contexts ContextRegistry
	logger   *logging.Logger
}

// NewManager builds a Manager. A nil registry behaves like NopContexts.
func NewManager(windows WindowManager, contexts ContextRegistry, logger *logging.Logger) *Manager {
	if windows == nil {
		panic("lifecycle.NewManager: windows is nil")
	}
	if contexts == nil {
		contexts = NopContexts{}
	}
	return &Manager{windows: windows, contexts: contexts, logger: logger}
}

// WrapFactory returns a factory whose controllers are managed.
func (m *Manager) WrapFactory(create Factory) ManagedFactory {
	return func(name string, cfg Config) (*Managed, error) {
		ctrl, err := create(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("create controller %q: %w", name, err)
		}
		return m.manage(name, ctrl, cfg), nil
	}
}

// WrapWidgetFactory returns a widget factory whose widgets are managed.
func (m *Manager) WrapWidgetFactory(create WidgetFactory) ManagedWidgetFactory {
	return func(name string, parent Controller, cfg Config) (*Managed, error) {
		widget, err := create(name, parent, cfg)
		if err != nil {
			return nil, fmt.Errorf("create widget %q: %w", name, err)
		}
		return m.manage(name, widget, cfg), nil
	}
}

func (m *Manager) manage(name string, ctrl Controller, cfg Config) *Managed {
	managed := &Managed{Controller: ctrl, name: name, cfg: cfg, manager: m}

	if c, ok := ctrl.(Constructor); ok {
		c.Construct(cfg)
	}
	return managed
}

// Managed is a controller with window handling attached.
type Managed struct {
	Controller

	name    string
	cfg     Config
	manager *Manager
}

// Name returns the name the controller was created with.
func (c *Managed) Name() string {
	return c.name
}

// Config returns the creation config.
func (c *Managed) Config() Config {
	return c.cfg
}

func (c *Managed) resolve(win Window) (Window, error) {
	if win == nil {
		win = c.View()
	}
	if win == nil {
		return nil, fmt.Errorf("controller %q has no window", c.name)
	}
	return win, nil
}

// OpenWindow opens win, or the controller's view when win is nil, and arms
// the open and close listeners. Tab group roots are left for their container
// to open.
func (c *Managed) OpenWindow(win Window) error {
	win, err := c.resolve(win)
	if err != nil {
		return err
	}

	if c.cfg.ShowSideMenu != nil {
		win.SetShowSideMenu(*c.cfg.ShowSideMenu)
	} else if c.cfg.TabGroupRoot {
		return nil
	}

	m := c.manager
	windowID := win.ID()

	opened := win.Once(EventOpen, func(evt events.Event) {
		m.contexts.Register(windowID, evt.Source)

		if c.cfg.OnOpen != nil {
			c.cfg.OnOpen(c)
		}
	})

	closed := win.Once(EventClose, func(evt events.Event) {
		m.contexts.Unregister(windowID)

		if d, ok := c.Controller.(Destructor); ok {
			m.logger.Debugf("destruct() called on %q", c.name)
			d.Destruct(evt)
		} else {
			m.logger.Warnf("destruct() NOT called on %q", c.name)
		}

		c.Destroy(evt)

		if c.cfg.OnClose != nil {
			c.cfg.OnClose(c)
		}

		if p, ok := evt.Source.(KeyboardPanner); ok {
			p.SetKeyboardPanning(false)
		}
	})

	if err := m.windows.Open(win); err != nil {
		opened.Off()
		closed.Off()
		return fmt.Errorf("open window %q: %w", windowID, err)
	}
	return nil
}

// CloseWindow closes win, or the controller's view when win is nil.
func (c *Managed) CloseWindow(win Window) error {
	win, err := c.resolve(win)
	if err != nil {
		return err
	}
	if err := c.manager.windows.Close(win); err != nil {
		return fmt.Errorf("close window %q: %w", win.ID(), err)
	}
	return nil
}
