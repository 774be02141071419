package app

import "strings"

// Violation messages recorded by the input guard
const (
	MsgTabSwitched   = "tab switched"
	MsgWindowBlur    = "window lost focus"
	MsgContextMenu   = "context menu blocked"
	MsgPageUnload    = "page unload attempted"
	msgBlockedKeyFmt = "blocked key combination: "
)

// blockedModifierKeys are the letters blocked together with Ctrl or Meta
var blockedModifierKeys = map[string]bool{
	"c": true, "v": true, "x": true, "p": true, "a": true, "s": true, "u": true,
}

// KeyEvent is a keydown observed in the exam tab
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
}

// Verdict is the guard's classification of one event
type Verdict struct {
	// Suppress asks the platform to cancel the native action
	Suppress bool
	// Violation is the message to log, empty when the event is allowed
	Violation string
}

// InputGuard classifies tab visibility, focus and input events while an
// exam is running. An uninstalled guard allows everything.
type InputGuard struct {
	installed bool
	hidden    bool
}

// NewInputGuard creates an uninstalled guard
func NewInputGuard() *InputGuard {
	return &InputGuard{}
}

// Install starts classifying events
func (g *InputGuard) Install() {
	g.installed = true
	g.hidden = false
}

// Uninstall stops classifying events
func (g *InputGuard) Uninstall() {
	g.installed = false
	g.hidden = false
}

// Installed reports whether the guard is active
func (g *InputGuard) Installed() bool {
	return g.installed
}

// Visibility flags only the visible to hidden edge
func (g *InputGuard) Visibility(hidden bool) Verdict {
	if !g.installed {
		return Verdict{}
	}
	edge := hidden && !g.hidden
	g.hidden = hidden
	if !edge {
		return Verdict{}
	}
	return Verdict{Violation: MsgTabSwitched}
}

// Blur flags loss of window focus. It is independent of Visibility, so one
// tab switch can produce both.
func (g *InputGuard) Blur() Verdict {
	if !g.installed {
		return Verdict{}
	}
	return Verdict{Violation: MsgWindowBlur}
}

// ContextMenu blocks the context menu
func (g *InputGuard) ContextMenu() Verdict {
	if !g.installed {
		return Verdict{}
	}
	return Verdict{Suppress: true, Violation: MsgContextMenu}
}

// BeforeUnload blocks leaving the page via the native confirmation
func (g *InputGuard) BeforeUnload() Verdict {
	if !g.installed {
		return Verdict{}
	}
	return Verdict{Suppress: true, Violation: MsgPageUnload}
}

// KeyDown blocks copy/paste style shortcuts, screenshots, task switching and
// fullscreen escapes
func (g *InputGuard) KeyDown(ev KeyEvent, fullscreen bool) Verdict {
	if !g.installed {
		return Verdict{}
	}

	combo, blocked := classifyKey(ev, fullscreen)
	if !blocked {
		return Verdict{}
	}
	return Verdict{Suppress: true, Violation: msgBlockedKeyFmt + combo}
}

func classifyKey(ev KeyEvent, fullscreen bool) (string, bool) {
	key := ev.Key
	lower := strings.ToLower(key)

	switch {
	case (ev.Ctrl || ev.Meta) && blockedModifierKeys[lower]:
		modifier := "Ctrl"
		if !ev.Ctrl {
			modifier = "Meta"
		}
		return modifier + "+" + strings.ToUpper(lower), true
	case key == "PrintScreen":
		return "PrintScreen", true
	case ev.Alt && key == "Tab":
		return "Alt+Tab", true
	case key == "Escape" && fullscreen:
		return "Escape", true
	case key == "F11":
		return "F11", true
	}
	return "", false
}
