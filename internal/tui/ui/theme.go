package ui

import "github.com/gdamore/tcell/v2"

// Palette entries shared by several theme slots.
var (
	ink    = tcell.ColorBlack
	paper  = tcell.ColorWhite
	muted  = tcell.ColorCadetBlue
	frame  = tcell.ColorDodgerBlue
	accent = tcell.ColorFuchsia
	cursor = tcell.ColorAqua
	warm   = tcell.ColorOrange
	alarm  = tcell.ColorOrangeRed
)

// Theme holds the colors of the chat UI.
type Theme struct {
	BgColor, FgColor              tcell.Color
	BorderColor, BorderFocusColor tcell.Color
	PromptBorderColor             tcell.Color
	TitleColor, CounterColor      tcell.Color

	TableHeaderFg, TableHeaderBg tcell.Color
	TableCursorFg, TableCursorBg tcell.Color

	CrumbActiveFg, CrumbActiveBg     tcell.Color
	CrumbInactiveFg, CrumbInactiveBg tcell.Color
	MenuKeyColor, NumericKeyColor    tcell.Color

	FlashInfoColor, FlashWarnColor, FlashErrColor tcell.Color

	// Conversation markers.
	OnlineColor tcell.Color
	TypingColor tcell.Color
	UnreadColor tcell.Color
	QuoteColor  tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	t := &Theme{
		BgColor:           ink,
		FgColor:           muted,
		BorderColor:       frame,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		PromptBorderColor: frame,
		TitleColor:        accent,
		CounterColor:      tcell.ColorPapayaWhip,
		MenuKeyColor:      frame,
		NumericKeyColor:   accent,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    warm,
		FlashErrColor:     alarm,
		OnlineColor:       tcell.ColorLimeGreen,
		TypingColor:       tcell.ColorKhaki,
		UnreadColor:       warm,
		QuoteColor:        tcell.ColorSlateGray,
	}
	t.TableHeaderFg, t.TableHeaderBg = paper, ink
	t.TableCursorFg, t.TableCursorBg = ink, cursor
	t.CrumbActiveFg, t.CrumbActiveBg = ink, warm
	t.CrumbInactiveFg, t.CrumbInactiveBg = ink, cursor
	return t
}
