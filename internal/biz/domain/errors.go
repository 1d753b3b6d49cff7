package domain

import "errors"

var (
	// ErrNoToken means the converter login did not yield a token
	ErrNoToken = errors.New("no converter token")

	// ErrQueueEmpty is returned when there is nothing to deliver
	ErrQueueEmpty = errors.New("queue is empty")
)
