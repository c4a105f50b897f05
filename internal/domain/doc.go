// Package domain contains the core entities and error taxonomy shared across
// tickship components.
//
// The types here have no dependencies on infrastructure. Host platform events
// are modeled as [StateChange] and [LogbookEntry]; everything that can go
// wrong on the wire is a sentinel error that callers check with errors.Is.
package domain
