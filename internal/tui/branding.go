package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const AppName = "cutboard"

// LogoLines is the block-letter logo shown on the empty screen and banner.
var LogoLines = []string{
	"▄▄▄ ▄ ▄ ▄▄▄ ▄▄  ▄▄▄ ▄▄▄ ▄▄  ▄▄ ",
	"█   █ █  █  █▄▀ █ █ █▄█ █▄▀ █ █",
	"█▄▄ █▄█  █  █▄▀ █▄█ █ █ █ █ █▄▀",
}

const CompactLogo = `cutboard ›`

// Banner gradient colors
var BannerColors = []lipgloss.Color{
	lipgloss.Color("#F4A261"),
	lipgloss.Color("#E9C46A"),
	lipgloss.Color("#2A9D8F"),
	lipgloss.Color("#8AB6D6"),
}

// Paper and ink: warm highlights over a cool slate background.
var (
	PrimaryColor   = lipgloss.Color("#F4A261") // Highlighter orange
	SecondaryColor = lipgloss.Color("#2A9D8F") // Teal ink
	AccentColor    = lipgloss.Color("#8AB6D6") // Selection blue

	BackgroundColor = lipgloss.Color("#1B1F27")
	SurfaceColor    = lipgloss.Color("#262B36")
	TextColor       = lipgloss.Color("#E8E6E3")
	MutedColor      = lipgloss.Color("#8B93A1")

	FavoriteColor = lipgloss.Color("#E9C46A")
	ErrorColor    = lipgloss.Color("#E76F51")
	SuccessColor  = lipgloss.Color("#52B788")
)

var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Bold(true).
			Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	FavoriteItemStyle = lipgloss.NewStyle().
				Foreground(FavoriteColor).
				Bold(true)

	SensitiveItemStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Italic(true)

	ChipStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	ActiveChipStyle = lipgloss.NewStyle().
			Foreground(BackgroundColor).
			Background(AccentColor).
			Bold(true).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	TimeStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Faint(true)

	StatusInfoStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	StatusSuccessStyle = lipgloss.NewStyle().
				Foreground(SuccessColor)

	StatusWarnStyle = lipgloss.NewStyle().
			Foreground(FavoriteColor)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)
)

func GetWelcomeMessage() string {
	return GetCompactBanner("No clipboard history yet. Import some with `cutboard import`")
}

func GetCompactBanner(message string) string {
	var coloredLines []string
	for _, line := range LogoLines {
		coloredLines = append(coloredLines, LogoStyle.Render(line))
	}

	logo := lipgloss.JoinVertical(lipgloss.Center, coloredLines...)

	return lipgloss.JoinVertical(
		lipgloss.Center,
		logo,
		"",
		HelpStyle.Render(message),
	)
}

// Banner renders the logo with a version tagline inside a double border.
func Banner(version string) string {
	lines := make([]string, len(LogoLines)+1)
	copy(lines, LogoLines)

	tagline := "    Clipboard History Browser"
	if version != "" && version != "dev" {
		if version[0] != 'v' && version[0] != 'V' {
			version = "v" + version
		}
		tagline = fmt.Sprintf("%s %s", tagline, version)
	}
	lines = append(lines, tagline)

	var coloredLines []string
	for i, line := range lines {
		if line == "" {
			coloredLines = append(coloredLines, line)
			continue
		}
		style := lipgloss.NewStyle().
			Foreground(BannerColors[i%len(BannerColors)]).
			Bold(i < len(LogoLines))
		coloredLines = append(coloredLines, style.Render(line))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(SecondaryColor).
		Padding(1, 3).
		MarginTop(1)

	return lipgloss.NewStyle().
		Width(60).
		Align(lipgloss.Center).
		Render(border.Render(lipgloss.JoinVertical(lipgloss.Center, coloredLines...)))
}

func ShowBanner(version string) {
	fmt.Println(Banner(version))
}
