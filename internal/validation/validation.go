package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinFullNameLength      = 2
	MaxFullNameLength      = 100
	MaxDescriptionLength   = 2000
	MaxBankNameLength      = 100
	MaxAccountHolderLength = 100
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	// Bank account numbers: digits only, 8 to 34 characters covers
	// domestic formats and IBAN lengths.
	accountNumberRegex = regexp.MustCompile(`^[0-9]{8,34}$`)
)

// ValidateLength checks the rune length of a string field.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty checks that a string is not blank.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	return nil
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}

	localPart, domainPart := parts[0], parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("email local part must be from 1 to 64 characters")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("email domain must be from 1 to 255 characters")
	}

	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("email local part contains invalid characters")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("email domain has an invalid format")
	}

	return nil
}

// ValidateAccountNumber checks a bank account number.
func ValidateAccountNumber(accountNumber string) error {
	if !accountNumberRegex.MatchString(accountNumber) {
		return fmt.Errorf("account number must be 8 to 34 digits")
	}
	return nil
}
