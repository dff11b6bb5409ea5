package domain

// PresenceEntry is the derived online state of one participant. It exists only
// while Connections > 0 and is never persisted.
type PresenceEntry struct {
	Participant Participant
	Connections int
}
