package categories

// Category classifies an error by the layer of the write path which produced it.
type Category string

const (
	// Configuration errors are caused by malformed or contradictory user options.
	Configuration Category = "configuration"
	// Connection errors are raised when the remote endpoint resource cannot be loaded.
	Connection Category = "connection"
	// RemoteCall errors come from bulk-call submission or completion.
	RemoteCall Category = "remote_call"
	// Unsupported marks operations the write path does not provide.
	Unsupported Category = "unsupported"
	// Serialization errors are raised when a row value does not fit its column type.
	Serialization Category = "serialization"
)

func (c Category) ID() string {
	return string(c)
}
