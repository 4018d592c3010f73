package statemachine

import "errors"

var ErrTransitionNotAllowed = errors.New("state transition not allowed")
