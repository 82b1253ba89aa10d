package favicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Palette is fixed; reordering it changes every badge.
var Palette = []string{
	"#E57373",
	"#F06292",
	"#BA68C8",
	"#7986CB",
	"#4FC3F7",
	"#4DB6AC",
	"#81C784",
	"#FFB74D",
}

// Badge is a colored letter standing in for a missing icon.
type Badge struct {
	Color string
	Glyph string
}

// BadgeFor is deterministic for a domain across runs and platforms.
func BadgeFor(domain string) Badge {
	return Badge{
		Color: Palette[paletteIndex(domain)],
		Glyph: glyph(domain),
	}
}

// paletteIndex hashes with h = 31*h + c over UTF-16 code units, in int32.
func paletteIndex(domain string) int {
	var h int32
	for _, r := range domain {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	idx := int(h) % len(Palette)
	if idx < 0 {
		idx = -idx
	}
	return idx
}

func glyph(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(domain)
	return string(unicode.ToUpper(r))
}
