// Package mail renders and delivers account notification emails.
//
// Delivery is fire-and-forget: callers hand a Message to the Outbox, which sends it
// on its own goroutine and logs failures. Nothing is retried.
package mail
