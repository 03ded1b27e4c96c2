package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorMode decides whether process labels carry color escapes
type ColorMode string

const (
	ColorAlways ColorMode = "always"
	ColorAuto   ColorMode = "auto"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a color mode name, empty means always
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case "":
		return ColorAlways, nil
	case ColorAlways, ColorAuto, ColorNever:
		return ColorMode(s), nil
	}
	return "", fmt.Errorf("unknown color mode %q, expected always, auto or never", s)
}

// Enabled reports whether escapes should be written to out
func (m ColorMode) Enabled(out io.Writer) bool {
	switch m {
	case ColorNever:
		return false
	case ColorAuto:
		f, ok := out.(*os.File)
		if !ok {
			return false
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	default:
		return true
	}
}

var paletteAttributes = []color.Attribute{
	color.FgCyan,
	color.FgYellow,
	color.FgGreen,
	color.FgMagenta,
	color.FgBlue,
}

// Palette is the fixed, ordered set of label colors
type Palette []*color.Color

// NewPalette builds the five label colors, with escapes on or off
func NewPalette(enabled bool) Palette {
	p := make(Palette, len(paletteAttributes))
	for i, attr := range paletteAttributes {
		c := color.New(attr)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		p[i] = c
	}
	return p
}

// Color returns the color for the i-th launched process, cycling
func (p Palette) Color(i int) *color.Color {
	if len(p) == 0 {
		return nil
	}
	return p[i%len(p)]
}
