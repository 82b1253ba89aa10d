package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{"plain file", "20250101_abc.png", false},
		{"empty", "", true},
		{"traversal", "../secret.png", true},
		{"dots only", "..", true},
		{"slash", "dir/file.png", true},
		{"backslash", `dir\file.png`, true},
		{"null byte", "a\x00.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHandle(tt.handle)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	got, err := ResolveWithin(base, "img.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "img.png"), got)

	_, err = ResolveWithin(base, "../img.png")
	assert.Error(t, err)
}

func TestValidateDestination(t *testing.T) {
	dir := t.TempDir()

	got, err := ValidateDestination(filepath.Join(dir, "out.md"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.md"), got)

	_, err = ValidateDestination("")
	assert.Error(t, err)

	_, err = ValidateDestination(dir)
	assert.Error(t, err, "directories are not valid destinations")

	_, err = ValidateDestination(filepath.Join(dir, "missing", "out.md"))
	assert.Error(t, err, "parent must exist")

	_, err = ValidateDestination(filepath.Join(dir, "bad\x01.md"))
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.cutboard/cutboard.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cutboard", "cutboard.db"), got)

	got, err = ExpandPath("relative/file")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.True(t, strings.HasSuffix(got, filepath.Join("relative", "file")))

	_, err = ExpandPath("~user/file")
	assert.Error(t, err)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
