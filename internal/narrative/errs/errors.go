// Package errs holds the narrative error sentinels in a leaf package so
// that provider implementations can wrap them without importing the parent
// narrative package (which imports the providers for its factory).
package errs

import "errors"

var (
	ErrProviderUnavailable = errors.New("narrative provider unavailable")
	ErrGenerateTimeout     = errors.New("narrative generation timeout")
	ErrInvalidResponse     = errors.New("narrative provider returned invalid response")
)
