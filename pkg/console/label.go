package console

import (
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// PaddingWidth is the column every label is padded to: widest name plus one,
// measured in terminal cells
func PaddingWidth(names []string) int {
	if len(names) == 0 {
		return 0
	}
	longest := 0
	for _, name := range names {
		longest = max(longest, runewidth.StringWidth(name))
	}
	return longest + 1
}

// Label is the read-only annotation a multiplexer puts on each line
type Label struct {
	Name  string
	Width int
	Color *color.Color
}

func NewLabel(name string, width int, c *color.Color) Label {
	return Label{Name: name, Width: width, Color: c}
}

// Prefix is the name padded to the shared width, followed by '|'
func (l Label) Prefix() string {
	return runewidth.FillRight(l.Name, l.Width) + "|"
}

func (l Label) paint(s string) string {
	if l.Color == nil {
		return s
	}
	return l.Color.Sprint(s)
}
