package page

import "errors"

var (
	// ErrInvalidArgument is returned when a page is constructed from an empty
	// or non-absolute link, or without a way to fetch it.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDisposed is returned by operations on a closed page.
	ErrDisposed = errors.New("page is closed")
	// ErrCanceled is returned by Refresh on a page whose fetch was canceled.
	ErrCanceled = errors.New("page fetch was canceled")
	// ErrIndexOutOfRange is returned by At for an index outside [0, PageCount].
	ErrIndexOutOfRange = errors.New("page index out of range")
)
