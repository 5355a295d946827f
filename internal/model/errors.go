package model

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid analysis parameter. It is fatal and
// raised before any computation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// InvalidSiteError reports a site whose coordinate could not be used.
type InvalidSiteError struct {
	SiteID string
	Reason string
}

func (e *InvalidSiteError) Error() string {
	if e.SiteID == "" {
		return "invalid site: " + e.Reason
	}
	return fmt.Sprintf("invalid site %s: %s", e.SiteID, e.Reason)
}

// EmptyResultWarning is a non-fatal condition: no geometry of the named
// layers was found within the radius. Engines continue with zero statistics
// and attach the warning text to their result.
type EmptyResultWarning struct {
	Layer  string
	Radius float64
}

func (w *EmptyResultWarning) Error() string {
	return fmt.Sprintf("no %s geometry within %.1f m", w.Layer, w.Radius)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsInvalidSiteError reports whether err is or wraps an InvalidSiteError.
func IsInvalidSiteError(err error) bool {
	var se *InvalidSiteError
	return errors.As(err, &se)
}
