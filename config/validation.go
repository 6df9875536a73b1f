package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs []ValidationError

	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		errs = append(errs, ValidationError{"SERVER_PORT", "must be numeric"})
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBHost == "" {
			errs = append(errs, ValidationError{"DB_HOST", "is required for postgres"})
		}
		if cfg.DBName == "" {
			errs = append(errs, ValidationError{"DB_NAME", "is required for postgres"})
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			errs = append(errs, ValidationError{"SQLITE_PATH", "is required for sqlite"})
		}
	default:
		errs = append(errs, ValidationError{"DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver)})
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, ValidationError{"APP_TIMEZONE", err.Error()})
	}

	if cfg.RateLimit < 0 {
		errs = append(errs, ValidationError{"RATE_LIMIT", "must not be negative"})
	}

	// Sensitive values are mandatory wherever real users can reach the service
	if cfg.Environment == Production || cfg.Environment == CI {
		if cfg.JWTSecret == "" {
			errs = append(errs, ValidationError{"JWT_SECRET", "is required"})
		}
		if cfg.DBDriver == DriverPostgres && cfg.DBPassword == "" {
			errs = append(errs, ValidationError{"DB_PASSWORD", "is required"})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("configuration validation failed:\n%s", strings.Join(msgs, "\n"))
}
