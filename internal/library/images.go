package library

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/validation"
)

// Image is a loaded image blob with its decoded dimensions.
type Image struct {
	Handle string
	Data   []byte
	Format string
	Width  int
	Height int
}

// LoadImage reads the image named by handle from the images directory.
// Results are cached; handles name immutable files.
func (l *Library) LoadImage(handle string) (*Image, error) {
	if img, ok := l.images.Get(handle); ok {
		return img, nil
	}

	path, err := validation.ResolveWithin(l.imagesDir, handle)
	if err != nil {
		return nil, fmt.Errorf("image handle: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", handle, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", handle, err)
	}

	img := &Image{
		Handle: handle,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}
	l.images.Put(handle, img)
	return img, nil
}

// LoadImages loads every handle it can; failures are logged and skipped.
func (l *Library) LoadImages(handles []string) map[string]*Image {
	out := make(map[string]*Image, len(handles))
	for _, h := range handles {
		img, err := l.LoadImage(h)
		if err != nil {
			debuglog.Debugf("batch image load: %v", err)
			continue
		}
		out[h] = img
	}
	return out
}
