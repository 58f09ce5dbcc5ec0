package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrTargetHasNoDevices = errors.New("target has no devices")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrUnauthorized       = errors.New("unauthorized")
)
