package service

import "errors"

var ErrInvalidNotification = errors.New("invalid notification")
