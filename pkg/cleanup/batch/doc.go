// Package batch implements the select-then-delete primitive shared by the
// SQL-backed cleanup handlers.
//
// A Deleter selects up to N ids whose timestamp is strictly older than the
// cutoff, ordered by (timestamp, id), and then deletes exactly that id set.
// The two statements run outside a transaction. If the delete fails after a
// successful select, the next call re-selects the same rows, so a failed
// batch is safe to retry blindly.
package batch
