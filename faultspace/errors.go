package faultspace

import "errors"

var (
	ErrAddressTooLow     = errors.New("invalid address in fault space: too low")
	ErrAddressInvalid    = errors.New("address invalid")
	ErrAddressOverflow   = errors.New("fault space address overflow")
	ErrAreaBound         = errors.New("area already mapped")
	ErrAreaNotFound      = errors.New("area not found")
	ErrAreaNotRegistered = errors.New("area not registered in this fault space")
	ErrRegisterNotFound  = errors.New("register not found")
	ErrRegisterDuplicate = errors.New("register duplicate")
	ErrRegisterWidth     = errors.New("register width invalid")
	ErrNoBackend         = errors.New("area has no backing target")
)
