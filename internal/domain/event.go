package domain

// StateChange is a single state-change event delivered by the host platform.
// Attributes values are scalars or nested maps as delivered by the host;
// RawValue is the state's string form before any numeric interpretation.
type StateChange struct {
	// Domain is the entity's domain (e.g. "sensor", "light").
	Domain string

	// ObjectID is the entity id without the domain prefix
	// (e.g. "temperature" for "sensor.temperature").
	ObjectID string

	// Attributes is the entity's attribute map at event time.
	Attributes map[string]any

	// RawValue is the new state as a string.
	RawValue string
}

// EntityID returns the full entity id, "domain.object_id".
func (s StateChange) EntityID() string {
	return s.Domain + "." + s.ObjectID
}

// LogbookEntry is a logbook event delivered by the host platform.
type LogbookEntry struct {
	Name     string
	Message  string
	EntityID string
	Domain   string
}
