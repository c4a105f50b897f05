// Package ports defines the interfaces that connect the application layer to
// infrastructure adapters.
//
// The application core (internal/app) depends only on these interfaces.
// Adapters implement them with concrete transports: the Home Assistant
// websocket client feeds [EventSink], and internal/kipc's connection
// satisfies [TickConn]. Tests substitute in-memory fakes for both sides.
package ports
