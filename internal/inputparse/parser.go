package inputparse

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parser incrementally decodes a byte stream into Events, buffering
// any partial escape sequence or multi-byte UTF-8 rune across calls
// to Parse until enough bytes have arrived to resolve it.
type Parser struct {
	buffer []byte
}

// Parse appends data to the parser's internal buffer and extracts as
// many complete events as are currently available, leaving any
// trailing partial sequence buffered for the next call.
func (p *Parser) Parse(data []byte) []Event {
	p.buffer = append(p.buffer, data...)

	var events []Event
	for len(p.buffer) > 0 {
		ev, consumed, incomplete := p.tryParseOne()
		if incomplete {
			break
		}
		if consumed <= 0 {
			consumed = 1 // never spin on a byte we can't interpret
		}
		p.buffer = p.buffer[consumed:]
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func (p *Parser) tryParseOne() (*Event, int, bool) {
	b := p.buffer
	first := b[0]

	if first == 0x1b {
		return p.parseEscape()
	}

	switch {
	case first == 0x0d && len(b) > 1 && b[1] == 0x0a:
		return &Event{Kind: EventKey, Key: KeyEnter}, 2, false
	case first == 0x0d || first == 0x0a:
		return &Event{Kind: EventKey, Key: KeyEnter}, 1, false
	case first == 0x09:
		return &Event{Kind: EventKey, Key: KeyTab}, 1, false
	case first == 0x7f || first == 0x08:
		return &Event{Kind: EventKey, Key: KeyBackspace}, 1, false
	case first < 0x20:
		return &Event{Kind: EventChar, Char: rune(first)}, 1, false
	default:
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b) {
				return nil, 0, true
			}
			return &Event{Kind: EventChar, Char: rune(first)}, 1, false
		}
		return &Event{Kind: EventChar, Char: r}, size, false
	}
}

func (p *Parser) parseEscape() (*Event, int, bool) {
	b := p.buffer
	if len(b) < 2 {
		return nil, 0, true
	}
	switch b[1] {
	case '[':
		return p.parseCSI()
	case 'O':
		return p.parseSS3()
	}
	if b[1] >= 32 {
		// Alt+key: the Alt bit is dropped, matching the closed set of
		// Key names this parser recognizes -- there is no generic
		// Alt-modifier representation here.
		return &Event{Kind: EventChar, Char: rune(b[1])}, 2, false
	}
	return nil, 1, false
}

func (p *Parser) parseCSI() (*Event, int, bool) {
	b := p.buffer
	if len(b) < 3 {
		return nil, 0, true
	}
	if b[2] == '<' {
		return p.parseSGRMouse()
	}
	if b[2] == 'M' {
		return p.parseX10Mouse()
	}

	for i := 2; i < len(b); i++ {
		c := b[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '~' {
			params := string(b[2:i])
			ev := decodeCSI(params, c)
			return ev, i + 1, false
		}
	}
	return nil, 0, true
}

func decodeCSI(params string, final byte) *Event {
	switch final {
	case 'A':
		return &Event{Kind: EventKey, Key: KeyUp}
	case 'B':
		return &Event{Kind: EventKey, Key: KeyDown}
	case 'C':
		return &Event{Kind: EventKey, Key: KeyRight}
	case 'D':
		return &Event{Kind: EventKey, Key: KeyLeft}
	case 'H':
		return &Event{Kind: EventKey, Key: KeyHome}
	case 'F':
		return &Event{Kind: EventKey, Key: KeyEnd}
	case '~':
		n, _ := strconv.Atoi(strings.SplitN(params, ";", 2)[0])
		switch n {
		case 1:
			return &Event{Kind: EventKey, Key: KeyHome}
		case 2:
			return &Event{Kind: EventKey, Key: KeyInsert}
		case 3:
			return &Event{Kind: EventKey, Key: KeyDelete}
		case 4:
			return &Event{Kind: EventKey, Key: KeyEnd}
		case 5:
			return &Event{Kind: EventKey, Key: KeyPageUp}
		case 6:
			return &Event{Kind: EventKey, Key: KeyPageDown}
		case 15:
			return &Event{Kind: EventKey, Key: KeyF5}
		case 17:
			return &Event{Kind: EventKey, Key: KeyF6}
		case 18:
			return &Event{Kind: EventKey, Key: KeyF7}
		case 19:
			return &Event{Kind: EventKey, Key: KeyF8}
		case 20:
			return &Event{Kind: EventKey, Key: KeyF9}
		case 21:
			return &Event{Kind: EventKey, Key: KeyF10}
		case 23:
			return &Event{Kind: EventKey, Key: KeyF11}
		case 24:
			return &Event{Kind: EventKey, Key: KeyF12}
		}
	}
	return nil
}

func (p *Parser) parseSS3() (*Event, int, bool) {
	b := p.buffer
	if len(b) < 3 {
		return nil, 0, true
	}
	var ev *Event
	switch b[2] {
	case 'P':
		ev = &Event{Kind: EventKey, Key: KeyF1}
	case 'Q':
		ev = &Event{Kind: EventKey, Key: KeyF2}
	case 'R':
		ev = &Event{Kind: EventKey, Key: KeyF3}
	case 'S':
		ev = &Event{Kind: EventKey, Key: KeyF4}
	case 'A':
		ev = &Event{Kind: EventKey, Key: KeyUp}
	case 'B':
		ev = &Event{Kind: EventKey, Key: KeyDown}
	case 'C':
		ev = &Event{Kind: EventKey, Key: KeyRight}
	case 'D':
		ev = &Event{Kind: EventKey, Key: KeyLeft}
	case 'H':
		ev = &Event{Kind: EventKey, Key: KeyHome}
	case 'F':
		ev = &Event{Kind: EventKey, Key: KeyEnd}
	}
	return ev, 3, false
}

// parseX10Mouse decodes "ESC [ M Cb Cx Cy", the legacy X10 mouse
// report: six bytes total, each coordinate offset by +32 and already
// representing the final 0-based coordinate once that offset is
// removed (no further -1 is applied, unlike the SGR protocol below).
func (p *Parser) parseX10Mouse() (*Event, int, bool) {
	b := p.buffer
	if len(b) < 6 {
		return nil, 0, true
	}
	cb, cx, cy := b[3], b[4], b[5]
	x := satSub32(cx)
	y := satSub32(cy)
	button, evType := decodeX10Button(cb)
	mods := decodeX10Modifiers(cb)
	return &Event{
		Kind: EventMouse, MouseX: x, MouseY: y,
		MouseButton: button, MouseEventType: evType, MouseMods: mods,
	}, 6, false
}

func satSub32(c byte) int {
	v := int(c) - 32
	if v < 0 {
		return 0
	}
	return v
}

func decodeX10Button(cb byte) (MouseButton, MouseEventType) {
	b := int(cb) - 32
	bits := b & 0x03
	motion := b&0x20 != 0
	if b&0x40 != 0 {
		switch bits {
		case 0:
			return MouseWheelUp, MousePress
		case 1:
			return MouseWheelDown, MousePress
		}
	}
	var button MouseButton
	switch bits {
	case 0:
		button = MouseLeft
	case 1:
		button = MouseMiddle
	case 2:
		button = MouseRight
	default:
		button = MouseNoneButton
	}
	var ev MouseEventType
	switch {
	case bits == 3:
		ev = MouseRelease
	case motion:
		ev = MouseDrag
	default:
		ev = MousePress
	}
	return button, ev
}

func decodeX10Modifiers(cb byte) Modifiers {
	b := int(cb) - 32
	return Modifiers{
		Shift: b&0x04 != 0,
		Alt:   b&0x08 != 0,
		Ctrl:  b&0x10 != 0,
	}
}

// parseSGRMouse decodes "ESC [ < Pb ; Px ; Py M" (press/drag/move) or
// the same with a trailing 'm' (release). Coordinates are 1-based on
// the wire and converted to 0-based here.
func (p *Parser) parseSGRMouse() (*Event, int, bool) {
	b := p.buffer
	end := -1
	for i := 3; i < len(b); i++ {
		if b[i] == 'M' || b[i] == 'm' {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, 0, true
	}
	isRelease := b[end] == 'm'
	params := string(b[3:end])
	parts := strings.Split(params, ";")
	pb, _ := strconv.Atoi(get(parts, 0))
	x, _ := strconv.Atoi(get(parts, 1))
	y, _ := strconv.Atoi(get(parts, 2))
	x = satSub1(x)
	y = satSub1(y)

	button, evType := decodeSGRButton(pb)
	if isRelease && button != MouseNoneButton {
		evType = MouseRelease
	}
	mods := decodeSGRModifiers(pb)

	return &Event{
		Kind: EventMouse, MouseX: x, MouseY: y,
		MouseButton: button, MouseEventType: evType, MouseMods: mods,
	}, end + 1, false
}

func get(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "1"
}

func satSub1(v int) int {
	v--
	if v < 0 {
		return 0
	}
	return v
}

func decodeSGRButton(pb int) (MouseButton, MouseEventType) {
	bits := pb & 0x03
	motion := pb&0x20 != 0
	if pb&0x40 != 0 {
		switch bits {
		case 0:
			return MouseWheelUp, MousePress
		case 1:
			return MouseWheelDown, MousePress
		}
		return MouseNoneButton, MousePress
	}
	var button MouseButton
	switch bits {
	case 0:
		button = MouseLeft
	case 1:
		button = MouseMiddle
	case 2:
		button = MouseRight
	default:
		button = MouseNoneButton
	}
	var ev MouseEventType
	switch {
	case motion && button != MouseNoneButton:
		ev = MouseDrag
	case motion:
		ev = MouseMove
	default:
		ev = MousePress
	}
	return button, ev
}

func decodeSGRModifiers(pb int) Modifiers {
	return Modifiers{
		Shift: pb&0x04 != 0,
		Alt:   pb&0x08 != 0,
		Ctrl:  pb&0x10 != 0,
	}
}
