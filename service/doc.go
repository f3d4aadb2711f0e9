// Package service is the only write entry point into the matching engine.
//
// Exchange routes commands to one BookService per instrument. A
// BookService serializes every command on its book and hands the
// resulting lifecycle events to a Sink. The Dispatcher is the Sink used
// in production: it numbers events and writes them to the outbox and
// the journal on its own goroutine.
package service
