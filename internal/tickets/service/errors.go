package service

import "errors"

var ErrEventNotFound = errors.New("event not found")
