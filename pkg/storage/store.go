// ABOUTME: Pluggable key-value substrate consumed by all chatstore components
// ABOUTME: Defines the synchronous Store contract shared by every adapter

package storage

// Store is the synchronous key-value substrate the chat components persist
// through. Set must make the record durable before returning. Get reports
// ok=false for a missing key without an error; errors are reserved for
// adapter failures (I/O, closed handles), which callers surface as storage
// unavailability.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
