package service

import "errors"

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrMarginUnknown      = errors.New("margin unavailable")
	ErrOrderRejected      = errors.New("order rejected")
)
