package requests

import "errors"

var (
	ErrRequestNotFound   = errors.New("apartment request not found")
	ErrMatchNotFound     = errors.New("match not found")
	ErrApartmentNotFound = errors.New("apartment not found")
	ErrForbidden         = errors.New("actor is not the addressed party")
	ErrRequestResolved   = errors.New("request already resolved")
	ErrInvalidFilter     = errors.New("invalid request filter")
	ErrApartmentFull     = errors.New("apartment has no free roommate slot")
)
