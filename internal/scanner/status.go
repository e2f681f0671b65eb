package scanner

// Status represents the lifecycle of a scan session.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusDiscovering      Status = "discovering"
	StatusScanning         Status = "scanning"
	StatusHashing          Status = "hashing"
	StatusFetchingMetadata Status = "fetching-metadata"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusError            Status = "error"
)

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusCancelled: {},
	StatusError:     {},
}

// Terminal reports whether the status ends a session. Terminal sessions do
// not auto-reset; the next Start replaces them.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Active reports whether the status belongs to an in-flight session.
func (s Status) Active() bool {
	return s != StatusIdle && !s.Terminal()
}
