package types

// Default prompt copy used for any DialogMessages label left unset.
const (
	DefaultDialogTitle                       = "Biometric verification"
	DefaultDialogSubtitle                    = ""
	DefaultDialogDescription                 = ""
	DefaultDialogNegativeButton              = "Cancel"
	DefaultDialogHint                        = "Verify your identity to continue"
	DefaultDialogNoBiometricsEnrolledMessage = "No biometrics are enrolled on this device"
	DefaultDialogHardwareUnsupportedMessage  = "Biometric hardware is not available on this device"
	DefaultDialogLockoutMessage              = "Too many failed attempts. Try again later"
)

// DialogMessages holds the text overrides for the biometric prompt. An empty
// field means "unset" and is replaced by its default in WithDefaults.
type DialogMessages struct {
	Title                       string `json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle                    string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Description                 string `json:"description,omitempty" yaml:"description,omitempty"`
	NegativeButton              string `json:"negativeButton,omitempty" yaml:"negativeButton,omitempty"`
	Hint                        string `json:"hint,omitempty" yaml:"hint,omitempty"`
	NoBiometricsEnrolledMessage string `json:"noBiometricsEnrolledMessage,omitempty" yaml:"noBiometricsEnrolledMessage,omitempty"`
	HardwareUnsupportedMessage  string `json:"hardwareUnsupportedMessage,omitempty" yaml:"hardwareUnsupportedMessage,omitempty"`
	LockoutMessage              string `json:"lockoutMessage,omitempty" yaml:"lockoutMessage,omitempty"`
}

// DefaultDialogMessages returns the prompt copy shown when nothing is overridden.
func DefaultDialogMessages() DialogMessages {
	return DialogMessages{
		Title:                       DefaultDialogTitle,
		Subtitle:                    DefaultDialogSubtitle,
		Description:                 DefaultDialogDescription,
		NegativeButton:              DefaultDialogNegativeButton,
		Hint:                        DefaultDialogHint,
		NoBiometricsEnrolledMessage: DefaultDialogNoBiometricsEnrolledMessage,
		HardwareUnsupportedMessage:  DefaultDialogHardwareUnsupportedMessage,
		LockoutMessage:              DefaultDialogLockoutMessage,
	}
}

// Overlay returns a copy of d where every non-empty field of o replaces d's value.
func (d DialogMessages) Overlay(o DialogMessages) DialogMessages {
	out := d
	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&out.Title, o.Title)
	overlay(&out.Subtitle, o.Subtitle)
	overlay(&out.Description, o.Description)
	overlay(&out.NegativeButton, o.NegativeButton)
	overlay(&out.Hint, o.Hint)
	overlay(&out.NoBiometricsEnrolledMessage, o.NoBiometricsEnrolledMessage)
	overlay(&out.HardwareUnsupportedMessage, o.HardwareUnsupportedMessage)
	overlay(&out.LockoutMessage, o.LockoutMessage)
	return out
}

// WithDefaults fills every unset label with its default.
func (d DialogMessages) WithDefaults() DialogMessages {
	return DefaultDialogMessages().Overlay(d)
}
