package models

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDeviceBlocked     = errors.New("device blocked")
)
