// Package audit defines the domain events emitted by access-grant
// writes and the emitter contract for publishing them.
//
// Events carry the full new grant so downstream consumers (event
// streaming, notification plugins) never need to re-read the account.
package audit
