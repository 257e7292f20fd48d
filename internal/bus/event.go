package bus

import "time"

// Event is a domain event published on the bus. Kind is dot-separated, most general first.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Kind joins a namespace and a leaf name.
func Kind(namespace, leaf string) string {
	return namespace + leaf
}
