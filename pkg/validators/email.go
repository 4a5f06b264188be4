// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if _, err := mail.ParseAddress(e); err != nil {
		return ErrEmailInvalid
	}

	return nil
}

// InDomain reports whether the address belongs to domain or one of its
// subdomains, ignoring case. "a@hyd.bits-pilani.ac.in" is in
// "bits-pilani.ac.in", "a@evilbits-pilani.ac.in" is not.
func InDomain(email, domain string) bool {
	if EmailValidator(email) != nil || domain == "" {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	host := strings.ToLower(email[at+1:])
	domain = strings.ToLower(strings.TrimPrefix(domain, "@"))

	return host == domain || strings.HasSuffix(host, "."+domain)
}
