package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBanner(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		contains []string
		excludes []string
	}{
		{
			name:     "release",
			version:  "1.0.0-test",
			contains: []string{"Clipboard History Browser", "╔", "╝", "v1.0.0-test"},
		},
		{
			name:     "dev build has no tag",
			version:  "dev",
			contains: []string{"Clipboard History Browser"},
			excludes: []string{"dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Banner(tt.version)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestGetCompactBanner(t *testing.T) {
	out := GetCompactBanner("Test message")
	assert.Contains(t, out, "Test message")
	assert.Contains(t, out, LogoLines[1])
}

func TestGetWelcomeMessage(t *testing.T) {
	assert.Contains(t, GetWelcomeMessage(), "cutboard import")
}

func TestLogoLinesShareWidth(t *testing.T) {
	width := len([]rune(LogoLines[0]))
	for i, line := range LogoLines {
		assert.Equal(t, width, len([]rune(line)), "logo line %d", i)
	}
}
