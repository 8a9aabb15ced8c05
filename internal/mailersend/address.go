package mailersend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAddress is returned when a string is neither "Name <mailbox@domain>"
// nor a bare mailbox@domain.
var ErrInvalidAddress = errors.New("invalid email address")

var (
	namedAddressRegex = regexp.MustCompile(`^(?P<name>[^<]*)<(?P<mailbox>[^<>\s@]+)@(?P<domain>(?:[^<>\s@.,]+\.)+[^<>\s@.,]{2,})>\s*$`)
	rawAddressRegex   = regexp.MustCompile(`^\s*(?P<mailbox>[^<>\s@]+)@(?P<domain>(?:[^<>\s@.,]+\.)+[^<>\s@.,]{2,})\s*$`)
)

// Address is a MailerSend recipient or sender. An empty Name means no
// display name.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// AddressFromParts builds an Address without validating the mailbox. The
// name is trimmed.
func AddressFromParts(name, email string) Address {
	return Address{Name: strings.TrimSpace(name), Email: email}
}

// ParseAddress accepts "Display Name <mailbox@domain>" or a bare
// mailbox@domain, and nothing else around them but whitespace. The domain
// needs at least one dot and a final label of two or more characters.
func ParseAddress(input string) (Address, error) {
	if m := namedAddressRegex.FindStringSubmatch(input); m != nil {
		return Address{
			Name:  strings.TrimSpace(m[namedAddressRegex.SubexpIndex("name")]),
			Email: m[namedAddressRegex.SubexpIndex("mailbox")] + "@" + m[namedAddressRegex.SubexpIndex("domain")],
		}, nil
	}
	if m := rawAddressRegex.FindStringSubmatch(input); m != nil {
		return Address{
			Email: m[rawAddressRegex.SubexpIndex("mailbox")] + "@" + m[rawAddressRegex.SubexpIndex("domain")],
		}, nil
	}
	return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
}

// String renders the address in "Name <email>" form, or the bare email.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}
