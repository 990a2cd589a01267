package window

// BorderStyle selects the glyph set a bordered Window draws with.
type BorderStyle int

const (
	BorderNone BorderStyle = iota
	BorderSingle
	BorderDouble
	BorderRounded
	BorderHeavy
	BorderASCII
)

// ParseBorderStyle maps a protocol string onto a BorderStyle,
// defaulting to BorderSingle for anything unrecognized — the same
// fallback the teacher's protocol layer uses for every enum-shaped
// string field.
func ParseBorderStyle(s string) BorderStyle {
	switch s {
	case "none":
		return BorderNone
	case "double":
		return BorderDouble
	case "rounded":
		return BorderRounded
	case "heavy":
		return BorderHeavy
	case "ascii":
		return BorderASCII
	default:
		return BorderSingle
	}
}

// BoxChars is the set of glyphs used to draw a border.
type BoxChars struct {
	TL, TR, BL, BR rune
	H, V           rune
}

var boxStyles = map[BorderStyle]BoxChars{
	BorderSingle:  {'┌', '┐', '└', '┘', '─', '│'},
	BorderDouble:  {'╔', '╗', '╚', '╝', '═', '║'},
	BorderRounded: {'╭', '╮', '╰', '╯', '─', '│'},
	BorderHeavy:   {'┏', '┓', '┗', '┛', '━', '┃'},
	BorderASCII:   {'+', '+', '+', '+', '-', '|'},
}

// Chars returns the glyph set for this style. BorderNone returns the
// zero BoxChars; callers must check HasBorder first.
func (b BorderStyle) Chars() BoxChars {
	return boxStyles[b]
}

// HasBorder reports whether this style draws a visible frame.
func (b BorderStyle) HasBorder() bool {
	return b != BorderNone
}

// ResizeHandleGlyph is drawn over the bottom-right border corner of
// any resizable window, replacing that corner.
const ResizeHandleGlyph = '◢'

// TitleAlign selects where a window's title text is positioned within
// its title bar.
type TitleAlign int

const (
	TitleLeft TitleAlign = iota
	TitleCenter
	TitleRight
)
