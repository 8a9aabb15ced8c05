package mailersend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		name  string
		email string
	}{
		{"John Doe <john@x.com>", "John Doe", "john@x.com"},
		{"john@x.com", "", "john@x.com"},
		{"John Doe <john_doe@mail.com>", "John Doe", "john_doe@mail.com"},
		{"  Spaced Name   <spaced@mail.example.org>", "Spaced Name", "spaced@mail.example.org"},
		{"<noname@example.io>", "", "noname@example.io"},
		{"   <blank@example.io>", "", "blank@example.io"},
		{"first.last+tag@sub.domain.co.uk", "", "first.last+tag@sub.domain.co.uk"},
		{"  padded@example.com  ", "", "padded@example.com"},
		{"John Doe <john@x.com>  ", "John Doe", "john@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.name, addr.Name)
			assert.Equal(t, tt.email, addr.Email)
		})
	}
}

func TestParseAddressInvalid(t *testing.T) {
	for _, input := range []string{
		"not-an-email",
		"",
		"john@localhost",
		"john@x.c",
		"John <john@>",
		"@example.com",
		"a b@x.com",
		"reader@example.com trailing",
		"John <john@x.com> extra",
		"<<john@x.com>",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAddress(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestAddressFromParts(t *testing.T) {
	addr := AddressFromParts("  John Doe ", "john_doe@mail.com")
	assert.Equal(t, "John Doe", addr.Name)
	assert.Equal(t, "john_doe@mail.com", addr.Email)

	addr = AddressFromParts("", "john_doe@mail.com")
	assert.Equal(t, "", addr.Name)
	assert.Equal(t, "john_doe@mail.com", addr.String())
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "John Doe <john@x.com>", Address{Name: "John Doe", Email: "john@x.com"}.String())
}

func TestCampaignFromTags(t *testing.T) {
	id, ok := CampaignFromTags([]string{"newsletter", CampaignTag("789"), "campaign:other"})
	assert.True(t, ok)
	assert.Equal(t, "789", id)

	_, ok = CampaignFromTags(nil)
	assert.False(t, ok)

	_, ok = CampaignFromTags([]string{"newsletter"})
	assert.False(t, ok)
}
