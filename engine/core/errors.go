package core

import (
	"errors"
)

var (
	ErrEntryNotFound   = errors.New("archive entry not found")
	ErrArchiveNotReady = errors.New("archive has not been prepared")
	ErrUnknown         = errors.New("unknown")
)
