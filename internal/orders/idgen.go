package orders

import "github.com/google/uuid"

// NewClientOrderID mints a globally unique client order id. Every order this
// engine places is keyed by one of these; venues echo it back on updates.
func NewClientOrderID() string {
	return uuid.NewString()
}
