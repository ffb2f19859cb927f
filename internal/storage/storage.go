package storage

import "errors"

var (
	ErrNoOrder     = errors.New("no order found")
	ErrOrderExists = errors.New("order already exists")
)
