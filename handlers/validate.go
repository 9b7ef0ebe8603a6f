package handlers

import (
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validateSlotDate accepts calendar dates in 2006-01-02 form.
func validateSlotDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// validateSlotTime accepts times of day in 15:04 form.
func validateSlotTime(slot string) bool {
	_, err := time.Parse("15:04", slot)
	return err == nil
}
