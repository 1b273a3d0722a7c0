package model

import "errors"

// Foreign and missing resources both surface as ErrNotFound.
var (
	ErrNotFound        = errors.New("not found")
	ErrNameConflict    = errors.New("name already taken")
	ErrUnitNotFound    = errors.New("unit not found")
	ErrAlreadyAttached = errors.New("schema already attached")
	ErrInvalidArgument = errors.New("invalid argument")
)
