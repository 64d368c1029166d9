package ports

// Surface is a serving frontend that composes the detector service.
// Implementations are the HTTP API and the SMTP content filter.
type Surface interface {
	// Start starts serving; it must not block
	Start() error

	// Stop shuts the surface down
	Stop() error
}
