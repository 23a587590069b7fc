package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ApplyTheme configures the Nord color scheme for the TUI.
func ApplyTheme() {
	tview.Styles = tview.Theme{
		PrimitiveBackgroundColor:    tcell.NewRGBColor(46, 52, 64),    // polar night (#2e3440)
		ContrastBackgroundColor:     tcell.NewRGBColor(59, 66, 82),    // surface (#3b4252)
		MoreContrastBackgroundColor: tcell.NewRGBColor(67, 76, 94),    // overlay (#434c5e)
		BorderColor:                 tcell.NewRGBColor(76, 86, 106),   // muted (#4c566a)
		TitleColor:                  tcell.NewRGBColor(136, 192, 208), // frost (#88c0d0)
		GraphicsColor:               tcell.NewRGBColor(129, 161, 193), // frost blue (#81a1c1)
		PrimaryTextColor:            tcell.NewRGBColor(216, 222, 233), // snow storm (#d8dee9)
		SecondaryTextColor:          tcell.NewRGBColor(136, 146, 164), // subtle (#8892a4)
		TertiaryTextColor:           tcell.NewRGBColor(76, 86, 106),   // muted (#4c566a)
		InverseTextColor:            tcell.NewRGBColor(46, 52, 64),    // polar night (#2e3440)
		ContrastSecondaryTextColor:  tcell.NewRGBColor(216, 222, 233), // snow storm (#d8dee9)
	}
}
