package errors

import "errors"

// Storage errors.
var (
	ErrStorageUnavailable = errors.New("shared storage unavailable")
	ErrNotFound           = errors.New("record not found")
)

// Input errors.
var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidHourSlot   = errors.New("hour slot out of range")
	ErrEmptyMeal         = errors.New("ongoing meal has no entries")
	ErrNoCarbRatio       = errors.New("no carb ratio for hour")
)
