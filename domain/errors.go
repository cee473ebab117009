package domain

import "errors"

var ErrInvalidTimestamp = errors.New("invalid timestamp")
var ErrMissingField = errors.New("missing required field")
var ErrMissingRecord = errors.New("no consent record stored for subject")
var ErrSuperseded = errors.New("submission superseded by a newer consent record")
var ErrExpired = errors.New("consent expired")
var ErrValidityCheckFailed = errors.New("validity check failed")
var ErrNetwork = errors.New("network failure")
var ErrStorage = errors.New("storage failure")
