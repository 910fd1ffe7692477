package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var slugScrub = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the input and collapses every non-alphanumeric run
// into a single hyphen.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugScrub.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// FieldErrors flattens validator output into a field->message map for the
// error response body.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	out := map[string]string{}
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// IsValidationError reports whether err came from input validation and
// should map to a 400 response.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
