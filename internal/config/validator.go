package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidStrategies returns the accepted capture.strategy values
func ValidStrategies() []string {
	return []string{"auto", "poll", "select"}
}

// ValidCloseOrders returns the accepted capture.close_order values
func ValidCloseOrders() []string {
	return []string{"auto", "device-first", "drain-first"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateCapture()...)
	errs = append(errs, c.validateFrame()...)
	if !slices.Contains(ValidLogLevels(), c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: "must be one of " + strings.Join(ValidLogLevels(), ", "),
		})
	}
	if c.Serve.Addr == "" {
		errs = append(errs, ValidationError{Field: "serve.addr", Value: c.Serve.Addr, Message: "must not be empty"})
	}
	return errs
}

func (c *Config) validateCapture() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidStrategies(), c.Capture.Strategy) {
		errs = append(errs, ValidationError{
			Field:   "capture.strategy",
			Value:   c.Capture.Strategy,
			Message: "must be one of " + strings.Join(ValidStrategies(), ", "),
		})
	}
	if !slices.Contains(ValidCloseOrders(), c.Capture.CloseOrder) {
		errs = append(errs, ValidationError{
			Field:   "capture.close_order",
			Value:   c.Capture.CloseOrder,
			Message: "must be one of " + strings.Join(ValidCloseOrders(), ", "),
		})
	}
	if c.Capture.IdleTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "capture.idle_timeout", Value: c.Capture.IdleTimeout, Message: "must be positive"})
	}
	if c.Capture.RawTail < 0 {
		errs = append(errs, ValidationError{Field: "capture.raw_tail", Value: c.Capture.RawTail, Message: "must not be negative"})
	}
	if _, err := c.Capture.ResolveEncoding(); err != nil {
		errs = append(errs, ValidationError{Field: "capture.encoding", Value: c.Capture.Encoding, Message: err.Error()})
	}
	return errs
}

func (c *Config) validateFrame() []ValidationError {
	var errs []ValidationError
	if c.Frame.MaxWidth < 10 {
		errs = append(errs, ValidationError{Field: "frame.max_width", Value: c.Frame.MaxWidth, Message: "must be at least 10"})
	}
	if c.Frame.Margin < 0 {
		errs = append(errs, ValidationError{Field: "frame.margin", Value: c.Frame.Margin, Message: "must not be negative"})
	}
	if c.Frame.Padding < 0 {
		errs = append(errs, ValidationError{Field: "frame.padding", Value: c.Frame.Padding, Message: "must not be negative"})
	}
	return errs
}

// ResolveEncoding looks up the configured encoding by its IANA name.
func (c *CaptureConfig) ResolveEncoding() (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(c.Encoding)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", c.Encoding)
	}
	return enc, nil
}

// LogLevel returns the configured logrus level.
func (c *LogConfig) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}
