package match

import "errors"

var (
	ErrInvalidParam = errors.New("the param is invalid")
	ErrUnknownOrder = errors.New("order not found in the book")
	ErrNotOwner     = errors.New("order belongs to another agent")
	ErrSequenceGap  = errors.New("book log sequence gap detected")
)
