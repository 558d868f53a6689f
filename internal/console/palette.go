package console

import (
	"fmt"

	"github.com/fatih/color"
)

// Palette is the set of colors applied to the pieces of an output
// line. Every field is always non-nil.
type Palette struct {
	Freq    *color.Color
	Mode    *color.Color
	Level   *color.Color
	Best    *color.Color
	NewMax  *color.Color
	Skip    *color.Color
	Summary *color.Color
}

// PaletteByName selects one of the named palettes: "default", "bright",
// "mono" (colors off), or "no-color" as an alias for mono.
func PaletteByName(name string) (Palette, error) {
	switch name {
	case "", "default":
		return Palette{
			Freq:    color.New(color.FgCyan),
			Mode:    color.New(color.FgYellow),
			Level:   color.New(color.FgWhite),
			Best:    color.New(color.FgGreen),
			NewMax:  color.New(color.FgGreen, color.Bold),
			Skip:    color.New(color.FgRed),
			Summary: color.New(color.FgMagenta),
		}, nil

	case "bright":
		return Palette{
			Freq:    color.New(color.FgHiCyan, color.Bold),
			Mode:    color.New(color.FgHiYellow),
			Level:   color.New(color.FgHiWhite),
			Best:    color.New(color.FgHiGreen),
			NewMax:  color.New(color.FgHiGreen, color.Bold, color.Underline),
			Skip:    color.New(color.FgHiRed),
			Summary: color.New(color.FgHiMagenta, color.Bold),
		}, nil

	case "mono", "no-color":
		plain := color.New()
		plain.DisableColor()
		return Palette{
			Freq:    plain,
			Mode:    plain,
			Level:   plain,
			Best:    plain,
			NewMax:  plain,
			Skip:    plain,
			Summary: plain,
		}, nil

	default:
		return Palette{}, fmt.Errorf("unknown palette %q", name)
	}
}
