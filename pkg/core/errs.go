package core

import "errors"

var (
	ErrNoData           = errors.New("no data")
	ErrPositionExists   = errors.New("position already open")
	ErrNoPosition       = errors.New("no open position")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidConfig    = errors.New("invalid configuration")
)
