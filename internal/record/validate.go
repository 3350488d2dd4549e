package record

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate caches struct metadata; safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints of rec.
// Cross-record constraints (an inspection's trap must exist) are enforced by the store.
func Validate(rec Record) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid %s %q: %w", rec.Collection(), rec.RecordID(), err)
	}
	return nil
}
