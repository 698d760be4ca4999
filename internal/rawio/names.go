package rawio

import (
	"fmt"
	"strings"
	"unicode"
)

// queueForbidden are characters CUPS rejects in queue names plus anything a
// shell or option parser could treat specially.
const queueForbidden = "`$;&|<>()'\"\\/#*?[]{}!~"

// ValidateQueueName checks a CUPS queue name before it is passed to lp.
func ValidateQueueName(name string) error {
	if err := validateCommon(name); err != nil {
		return err
	}
	for _, r := range name {
		if unicode.IsSpace(r) || strings.ContainsRune(queueForbidden, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidDeviceName, name, r)
		}
	}
	return nil
}

// ValidateSpoolerName checks a Windows printer name before it is handed to
// the spooler. Spaces and backslashes are legal there (\\server\share), but
// commas and control characters are not.
func ValidateSpoolerName(name string) error {
	if err := validateCommon(name); err != nil {
		return err
	}
	if strings.ContainsRune(name, ',') {
		return fmt.Errorf("%w: %q contains ','", ErrInvalidDeviceName, name)
	}
	if len(name) > 259 {
		return fmt.Errorf("%w: name is longer than 259 characters", ErrInvalidDeviceName)
	}
	return nil
}

func validateCommon(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoPrinter
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: %q starts with '-'", ErrInvalidDeviceName, name)
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidDeviceName, name)
		}
	}
	return nil
}
