package interpreter

import (
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

var ErrSourceTooLarge = errors.New("source too large")

// NormalizeSource returns src in Unicode normalization form C, so that
// keywords and variable names typed with decomposed vowel signs match their
// precomposed spelling.
func NormalizeSource(src string) string {
	return norm.NFC.String(src)
}

// CheckSourceSize fails when src is longer than maxBytes. A limit of zero or
// less disables the check.
func CheckSourceSize(src string, maxBytes int) error {
	if maxBytes > 0 && len(src) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(src), maxBytes)
	}
	return nil
}
