package tui

// StatusKind indicates severity for status messages.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

func (k StatusKind) style() string {
	switch k {
	case StatusSuccess:
		return StatusSuccessStyle.Render("✓")
	case StatusWarn:
		return StatusWarnStyle.Render("!")
	case StatusError:
		return StatusErrorStyle.Render("✗")
	default:
		return StatusInfoStyle.Render("›")
	}
}
