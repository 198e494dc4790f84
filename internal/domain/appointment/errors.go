package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrScheduledInPast         = errors.New("cannot schedule an appointment in the past")
	ErrInvalidDuration         = errors.New("appointment duration must be between 5 and 120 minutes")
)
