package realtime

import "github.com/IlyacloudDev/QuickTalk/internal/models"

// Conn is one live transport session bound to a single user. The registry
// and the router only ever see this interface; the websocket client and
// the test fakes both implement it.
type Conn interface {
	// User returns the authenticated identity the connection belongs to.
	User() models.User

	// Deliver enqueues a payload on the connection's bounded outbound
	// queue without blocking. It returns false when the queue is full or
	// the connection is already closed; the caller treats that as a slow
	// or dead consumer.
	Deliver(payload []byte) bool

	// Close tears the connection down with a close reason. Safe to call
	// more than once.
	Close(code int, reason string)
}
