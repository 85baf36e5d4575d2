package validation

import (
	"strings"
	"unicode/utf8"

	validatorv10 "github.com/go-playground/validator/v10"
)

// MinInvoiceNumberLength is the shortest invoice number the importer accepts.
const MinInvoiceNumberLength = 5

// New returns a configured validator with the custom tags used by the payload types registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// notblank: required alone lets "   " through
	_ = v.RegisterValidation("notblank", notBlank)

	return v
}

func notBlank(fl validatorv10.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidInvoiceNumber reports whether n is long enough to be committed.
// Length counts characters, not bytes.
func ValidInvoiceNumber(n string) bool {
	return utf8.RuneCountInString(n) >= MinInvoiceNumberLength
}
