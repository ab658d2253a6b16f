package services

import "errors"

// ErrNotReady marks a prerequisite that has not happened yet (e.g. artifact
// generation requested before the interview is complete). Handlers map it to
// 409 so callers back off and retry instead of treating it as permanent.
var ErrNotReady = errors.New("not ready")

// ErrNotFound marks a missing entity the caller asked for by identity.
var ErrNotFound = errors.New("not found")
