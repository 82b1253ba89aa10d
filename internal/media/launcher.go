package media

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pders01/cutboard/internal/config"
)

type Type int

const (
	TypeImage Type = iota
	TypeDocument
	TypeArchive
	TypeUnknown
)

var extensions = map[string]Type{
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".gif":  TypeImage,
	".bmp":  TypeImage,
	".webp": TypeImage,
	".md":   TypeDocument,
	".txt":  TypeDocument,
	".zip":  TypeArchive,
}

// DetectType classifies a local file by extension.
func DetectType(path string) Type {
	if t, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return TypeUnknown
}

// Launcher opens exported files and images with desktop applications.
type Launcher struct {
	imageViewer   string
	defaultOpener string
	goos          string
	start         func(name string, args ...string) error
}

func NewLauncher(cfg *config.Config) *Launcher {
	defaultOpener := cfg.Media.DefaultOpener
	if defaultOpener == "" {
		defaultOpener = platformOpener(runtime.GOOS)
	}

	l := &Launcher{
		defaultOpener: defaultOpener,
		goos:          runtime.GOOS,
		start:         startDetached,
	}
	if len(cfg.Media.Image) > 0 {
		l.imageViewer = findCommand(cfg.Media.Image...)
	}
	if l.imageViewer == "" {
		l.imageViewer = l.defaultOpener
	}
	return l
}

func platformOpener(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// OpenCommand is the command Open would run for path.
func (l *Launcher) OpenCommand(path string) (string, []string) {
	if DetectType(path) == TypeImage {
		return l.imageViewer, []string{path}
	}
	return l.defaultOpener, []string{path}
}

// RevealCommand selects path in the file manager where the platform allows
// it, otherwise opens its directory.
func (l *Launcher) RevealCommand(path string) (string, []string) {
	switch l.goos {
	case "darwin":
		return "open", []string{"-R", path}
	case "windows":
		return "explorer", []string{"/select," + path}
	default:
		return l.defaultOpener, []string{filepath.Dir(path)}
	}
}

func (l *Launcher) Open(path string) error {
	name, args := l.OpenCommand(path)
	return l.run(name, args)
}

func (l *Launcher) Reveal(path string) error {
	name, args := l.RevealCommand(path)
	return l.run(name, args)
}

func (l *Launcher) run(name string, args []string) error {
	if name == "" {
		return fmt.Errorf("no application found to open %s", strings.Join(args, " "))
	}
	if err := l.start(name, args...); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return nil
}

// startDetached starts GUI applications without waiting on them.
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func findCommand(commands ...string) string {
	for _, cmd := range commands {
		if _, err := exec.LookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
