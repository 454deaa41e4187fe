package services

import "errors"

var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrGatewaySetup       = errors.New("could not create payment order")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrPersistence        = errors.New("could not record order")
)
