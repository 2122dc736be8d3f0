package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderAlreadyExists     = errors.New("order already exists")
	ErrOrderLocked            = errors.New("order payment attributes are locked")
	ErrOrderNotPlaced         = errors.New("order has no prepay id")
	ErrOrderChanged           = errors.New("order changed while it was being placed")
	ErrRefundNotFound         = errors.New("refund not found")
	ErrRefundAlreadyExists    = errors.New("refund already exists")
	ErrPayoutNotFound         = errors.New("payout not found")
	ErrPayoutAlreadyExists    = errors.New("payout already exists")
	ErrRedPacketNotFound      = errors.New("red packet not found")
	ErrRedPacketAlreadyExists = errors.New("red packet already exists")
	ErrUnverifiedPayload      = errors.New("payload signature not verified")
	ErrAmountMismatch         = errors.New("amount mismatch")
	ErrCallbackRejected       = errors.New("callback rejected")

	ErrConcurrentUpdate = repository.ErrConcurrentUpdate
)
