package vt

import "github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"

// downsample256 maps a full xterm 256-color index onto the nearest of
// the engine's 16 ANSI colors. Indices 0-15 map directly onto the
// standard/bright ANSI colors. Indices 16-231 are the 6x6x6 color
// cube; indices 232-255 are a 24-step grayscale ramp. There is no
// working reference for this in original_source (its equivalent
// silently collapses everything above 15 to white), so this follows
// the well-known xterm cube/ramp arithmetic directly.
func downsample256(index uint8) cellgrid.Color {
	if index < 16 {
		return cellgrid.ClampColor(index)
	}
	if index >= 232 {
		level := int(index) - 232 // 0..23
		gray := level * 255 / 23
		return nearestANSI(gray, gray, gray)
	}
	i := int(index) - 16
	r := cubeLevel(i / 36)
	g := cubeLevel((i / 6) % 6)
	b := cubeLevel(i % 6)
	return nearestANSI(r, g, b)
}

// cubeLevel converts a 0-5 cube coordinate to an 8-bit intensity,
// using xterm's own non-linear step table.
func cubeLevel(n int) int {
	if n == 0 {
		return 0
	}
	return 55 + n*40
}

// ansiPalette is the approximate RGB value of each of the 16 ANSI
// colors on a typical terminal, used only to find the nearest
// standard color for a downsampled 256-color or truecolor request.
var ansiPalette = [16][3]int{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

func nearestANSI(r, g, b int) cellgrid.Color {
	best := 0
	bestDist := -1
	for i, c := range ansiPalette {
		dr, dg, db := r-c[0], g-c[1], b-c[2]
		dist := dr*dr + dg*dg + db*db
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return cellgrid.Color(best)
}
