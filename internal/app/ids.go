package app

import "github.com/google/uuid"

func newID() string {
	return uuid.NewString()
}

// newToken mints the opaque external reference attached to a hold.
func newToken() string {
	return uuid.NewString()
}
