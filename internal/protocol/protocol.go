// Package protocol defines the JSON wire format games use to drive
// the display engine and the events the engine sends back: commands
// tagged by a "cmd" field, responses tagged by a "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/benj-edwards/ascii-processing-unit/internal/inputparse"
)

// Command is every field any command variant can carry, discriminated
// by Cmd. Unlike a closed sum type, a single flat struct with
// omitempty fields lets encoding/json decode any command in one shot
// without a RawMessage peel first -- the Session field is simply
// another field on the same struct, not something that has to be
// stripped out before the rest can be parsed.
type Command struct {
	Cmd     string `json:"cmd"`
	Session string `json:"session,omitempty"`

	// init
	Cols *int `json:"cols,omitempty"`
	Rows *int `json:"rows,omitempty"`

	// create_window / update_window / resize_terminal / create_terminal
	ID         string  `json:"id,omitempty"`
	X          *int    `json:"x,omitempty"`
	Y          *int    `json:"y,omitempty"`
	Width      *int    `json:"width,omitempty"`
	Height     *int    `json:"height,omitempty"`
	Border     string  `json:"border,omitempty"`
	Title      *string `json:"title,omitempty"`
	Closable   *bool   `json:"closable,omitempty"`
	Resizable  *bool   `json:"resizable,omitempty"`
	Draggable  *bool   `json:"draggable,omitempty"`
	MinWidth   *int    `json:"min_width,omitempty"`
	MinHeight  *int    `json:"min_height,omitempty"`
	Invert     *bool   `json:"invert,omitempty"`
	Visible    *bool   `json:"visible,omitempty"`
	ZIndex     *int    `json:"z_index,omitempty"`

	// set_cell / print / fill / set_direct / print_direct
	Window string `json:"window,omitempty"`
	Char   string `json:"char,omitempty"`
	Text   string `json:"text,omitempty"`
	FG     *uint8 `json:"fg,omitempty"`
	BG     *uint8 `json:"bg,omitempty"`

	// batch
	Cells []BatchCell `json:"cells,omitempty"`

	// flush
	ForceFull bool `json:"force_full,omitempty"`

	// enable_mouse
	Mode string `json:"mode,omitempty"`

	// share_display / unshare_display / share_window / unshare_window
	Source   string `json:"source,omitempty"`
	Target   string `json:"target,omitempty"`
	WindowID string `json:"window_id,omitempty"`

	// create_terminal / close_terminal / terminal_input /
	// terminal_config / resize_terminal
	Host         string  `json:"host,omitempty"`
	Port         *uint16 `json:"port,omitempty"`
	TerminalType string  `json:"terminal_type,omitempty"`
	Data         string  `json:"data,omitempty"`
	LocalEcho    *bool   `json:"local_echo,omitempty"`
	LineEnding   string  `json:"line_ending,omitempty"`
}

// BatchCell is a single cell update within a "batch" command.
type BatchCell struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Char   string `json:"char"`
	FG     *uint8 `json:"fg,omitempty"`
	BG     uint8  `json:"bg,omitempty"`
	Window string `json:"window,omitempty"`
}

// ParseCommand decodes a single JSON command. The session field, if
// present, ends up on the returned Command exactly like every other
// field -- there is no separate targeted/untargeted parse path.
func ParseCommand(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return &cmd, nil
}

// DefaultFG is the implicit foreground color (white) commands get
// when they omit "fg", matching default_fg() in the original
// protocol.
const DefaultFG uint8 = 7

// FGOr returns the command's foreground or DefaultFG if it wasn't
// given.
func (c *Command) FGOr() uint8 {
	if c.FG == nil {
		return DefaultFG
	}
	return *c.FG
}

// DefaultBG is the implicit background color (black) commands get
// when they omit "bg".
const DefaultBG uint8 = 0

// BGOr returns the command's background or DefaultBG if it wasn't
// given.
func (c *Command) BGOr() uint8 {
	if c.BG == nil {
		return DefaultBG
	}
	return *c.BG
}

// Response is every field any response/event variant can carry,
// discriminated by Type.
type Response struct {
	Type string `json:"type"`

	// output
	Data string `json:"data,omitempty"`

	// error / terminal_error
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// info
	Cols     int    `json:"cols,omitempty"`
	Rows     int    `json:"rows,omitempty"`
	Renderer string `json:"renderer,omitempty"`

	// input / client_connect / client_disconnect / refresh_requested
	Session string      `json:"session,omitempty"`
	Event   *InputEvent `json:"event,omitempty"`

	// window_*
	ID     string `json:"id,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// sessions
	Sessions []SessionInfo `json:"sessions,omitempty"`

	// terminal_connected / terminal_disconnected / terminal_error
	Host   string `json:"host,omitempty"`
	Port   uint16 `json:"port,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// SessionInfo describes one connected session for a "sessions"
// response.
type SessionInfo struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	ConnectedAt int64  `json:"connected_at"`
}

// InputEvent is the wire form of an inputparse.Event: a tagged union
// with the same field names and snake_case enum spellings used
// throughout this protocol.
type InputEvent struct {
	Type string `json:"type"`

	Char string `json:"char,omitempty"`

	Key string `json:"key,omitempty"`

	X         uint16    `json:"x,omitempty"`
	Y         uint16    `json:"y,omitempty"`
	Button    string    `json:"button,omitempty"`
	Event     string    `json:"event,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitempty"`
}

// Modifiers mirrors inputparse.Modifiers for the wire.
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
}

var keyNames = map[inputparse.Key]string{
	inputparse.KeyUp: "up", inputparse.KeyDown: "down",
	inputparse.KeyLeft: "left", inputparse.KeyRight: "right",
	inputparse.KeyHome: "home", inputparse.KeyEnd: "end",
	inputparse.KeyPageUp: "page_up", inputparse.KeyPageDown: "page_down",
	inputparse.KeyInsert: "insert", inputparse.KeyDelete: "delete",
	inputparse.KeyEscape: "escape", inputparse.KeyEnter: "enter",
	inputparse.KeyTab: "tab", inputparse.KeyBackspace: "backspace",
	inputparse.KeyF1: "f1", inputparse.KeyF2: "f2", inputparse.KeyF3: "f3",
	inputparse.KeyF4: "f4", inputparse.KeyF5: "f5", inputparse.KeyF6: "f6",
	inputparse.KeyF7: "f7", inputparse.KeyF8: "f8", inputparse.KeyF9: "f9",
	inputparse.KeyF10: "f10", inputparse.KeyF11: "f11", inputparse.KeyF12: "f12",
}

var buttonNames = map[inputparse.MouseButton]string{
	inputparse.MouseLeft: "left", inputparse.MouseMiddle: "middle",
	inputparse.MouseRight: "right", inputparse.MouseWheelUp: "wheel_up",
	inputparse.MouseWheelDown: "wheel_down", inputparse.MouseNoneButton: "none",
}

var mouseEventNames = map[inputparse.MouseEventType]string{
	inputparse.MousePress: "press", inputparse.MouseRelease: "release",
	inputparse.MouseDrag: "drag", inputparse.MouseMove: "move",
}

// EncodeInputEvent converts a parsed engine-side event into its wire
// representation.
func EncodeInputEvent(ev inputparse.Event) InputEvent {
	switch ev.Kind {
	case inputparse.EventChar:
		return InputEvent{Type: "char", Char: string(ev.Char)}
	case inputparse.EventKey:
		return InputEvent{Type: "key", Key: keyNames[ev.Key]}
	case inputparse.EventMouse:
		return InputEvent{
			Type:   "mouse",
			X:      uint16(ev.MouseX),
			Y:      uint16(ev.MouseY),
			Button: buttonNames[ev.MouseButton],
			Event:  mouseEventNames[ev.MouseEventType],
			Modifiers: Modifiers{
				Shift: ev.MouseMods.Shift,
				Ctrl:  ev.MouseMods.Ctrl,
				Alt:   ev.MouseMods.Alt,
			},
		}
	default:
		return InputEvent{}
	}
}

// EncodeResponse serializes a response. If marshaling somehow fails
// (it practically never does for this struct), it falls back to a
// fixed error payload rather than propagating the error, matching the
// original protocol's serialize_response.
func EncodeResponse(r *Response) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"type":"error","message":"serialization failed"}`)
	}
	return data
}
