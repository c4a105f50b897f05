// Package hass adapts a Home Assistant instance's websocket API to the
// bridge's EventSource port: long-lived-token authentication, event
// subscriptions for state changes and logbook entries, and reconnection with
// backoff.
package hass
