package types

// Event is the canonical structured payload emitted by the venue engines for
// downstream consumers (RPC streams, indexers, audit logs).
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
