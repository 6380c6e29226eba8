package engine

import "errors"

var (
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrOutOfStock          = errors.New("out of stock")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTypeMismatch        = errors.New("resource type mismatch")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDanglingBucket      = errors.New("dangling bucket")
	ErrNotOwner            = errors.New("vault is not owned by the component")
	ErrUnknownMethod       = errors.New("unknown method")
	ErrUnknownBlueprint    = errors.New("unknown blueprint")
	ErrNotFound            = errors.New("not found")
	ErrTxDone              = errors.New("transaction is already finished")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrFrameInactive       = errors.New("frame is not executing")
	ErrInvalidProof        = errors.New("invalid proof")
)
