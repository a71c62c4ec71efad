package core

// Conn is the transport side of a session as seen by the core layer.
// ReadLine is only called by the owning session goroutine; WriteLine may be
// called concurrently by the router on behalf of other sessions.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(text string) error
	// Interrupt makes a pending or future ReadLine fail without closing the
	// connection.
	Interrupt()
	Close() error
	RemoteAddr() string
}
