package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the GatewayConfig using struct tags and cross-field
// rules. Returns an error with actionable messages on failure.
func (c *GatewayConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateAuditBackend(); err != nil {
		return err
	}

	return nil
}

// validateAuditBackend ensures the selected backend's own config section
// carries what it needs to start.
func (c *GatewayConfig) validateAuditBackend() error {
	switch c.Audit.Backend {
	case "file":
		if c.Audit.File.Dir == "" {
			return errors.New("audit.file.dir is required when audit.backend is \"file\"")
		}
	case "sqlite":
		if c.Audit.SQLite.Path == "" {
			return errors.New("audit.sqlite.path is required when audit.backend is \"sqlite\"")
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
