// Package handlers binds category keys to deletion routines.
//
// A Handler deletes at most one batch per call. It must only touch items
// strictly older than the cutoff, select them oldest first with a unique
// tiebreaker, and report HasMore as Deleted == BatchSize. Deletion itself is
// the progress marker, so a handler may return a nil checkpoint.
//
// The Registry is built at startup from a Builtins value that has one field
// per built-in key; NewRegistry refuses to start if any of them is unbound.
// Categories configured at runtime with other keys are bound via Register.
package handlers
