package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"asha@example.com",
		"dr.menon+clinic@hospital.co.in",
		"a_b-c@sub.domain.org",
	}
	for _, email := range valid {
		assert.True(t, validateEmail(email), email)
	}

	invalid := []string{
		"",
		"not-an-email",
		"missing@tld",
		"@example.com",
		"user@.com",
		"user@example.",
	}
	for _, email := range invalid {
		assert.False(t, validateEmail(email), email)
	}
}

func TestValidateSlotDate(t *testing.T) {
	assert.True(t, validateSlotDate("2026-09-10"))
	assert.False(t, validateSlotDate("10-09-2026"))
	assert.False(t, validateSlotDate("2026-13-01"))
	assert.False(t, validateSlotDate(""))
}

func TestValidateSlotTime(t *testing.T) {
	assert.True(t, validateSlotTime("10:30"))
	assert.True(t, validateSlotTime("23:59"))
	assert.False(t, validateSlotTime("25:00"))
	assert.False(t, validateSlotTime("10:30 AM"))
	assert.False(t, validateSlotTime(""))
}
