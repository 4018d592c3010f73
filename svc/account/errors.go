package account

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPhoneTaken         = errors.New("phone number is already registered")
	ErrInvalidPhone       = errors.New("phone must be an E.164 number")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrUnauthenticated    = errors.New("missing or invalid identity")
	ErrIdentityNotLinked  = errors.New("identity has no registered user")
)
