package checklist

import "errors"

// Errors returned by Session operations. Store errors are wrapped, so
// errors.Is also matches db.ErrVehicleNotFound and db.ErrWrite.
var (
	ErrLoad            = errors.New("could not load vehicle data")
	ErrInvalidInput    = errors.New("invalid input")
	ErrIndexOutOfRange = errors.New("checklist item index out of range")
	ErrWrite           = errors.New("could not save checklist")
)
