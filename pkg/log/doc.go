// Package log provides the logging abstraction for tickship components.
//
// A Field-based Logger interface keeps the core free of any particular
// logging library; the provided ZerologAdapter is the production
// implementation and NoopLogger serves tests. Implement the interface to
// integrate with existing logging infrastructure.
package log
