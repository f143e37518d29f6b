// Package ui defines what the session core needs from the user interface:
// a fire-and-forget message surface and a way to move to the sign-in entry point.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// LoginPath is the unauthenticated entry point.
const LoginPath = "/login"

// Level is the kind of message shown to the user.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notifier shows a message to the user. Implementations must not block.
type Notifier interface {
	Notify(level Level, title, description string)
}

// Navigator moves the application between entry points.
type Navigator interface {
	Location() string
	Navigate(path string)
}

// ConsoleNotifier prints messages as single lines, optionally coloured.
type ConsoleNotifier struct {
	w     io.Writer
	color bool
	lock  sync.Mutex
}

var _ Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier(w io.Writer, color bool) *ConsoleNotifier {
	return &ConsoleNotifier{w: w, color: color}
}

func (c *ConsoleNotifier) Notify(level Level, title, description string) {
	tag := fmt.Sprintf(" %-7s ", strings.ToUpper(string(level)))
	if c.color {
		if colour, ok := levelColors[level]; ok {
			tag = colourise(colour, tag)
		}
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if description == "" {
		fmt.Fprintf(c.w, "%s %s\n", tag, title)
		return
	}
	desc := strings.ReplaceAll(description, "\n", "\n          ")
	if c.color {
		desc = colourise(Gray, desc)
	}
	fmt.Fprintf(c.w, "%s %s\n          %s\n", tag, title, desc)
}

// Router is an in-memory Navigator for applications without real routes.
// OnNavigate, when set, is called after every change of location.
type Router struct {
	lock       sync.Mutex
	location   string
	OnNavigate func(path string)
}

var _ Navigator = (*Router)(nil)

func NewRouter(initial string) *Router {
	return &Router{location: initial}
}

func (r *Router) Location() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.location
}

func (r *Router) Navigate(path string) {
	r.lock.Lock()
	r.location = path
	hook := r.OnNavigate
	r.lock.Unlock()

	if hook != nil {
		hook(path)
	}
}
