// Package controller is the run state machine.
//
// A run moves through these states:
//
//	          start
//	            |
//	            v
//	pause   +---------+   tick, hasMore=false
//	<-------| running |----------------------> done
//	------->|         |----------------------> done        (stop)
//	resume  +---------+----------------------> error-terminal (no handler)
//	            |  ^
//	      pause |  | resume
//	            v  |
//	        +--------+
//	        | paused |--------------------> done         (stop)
//	        +--------+
//
// A handler failure leaves the run running with lastError and retryAfter
// set. Tick on anything but a running run is a no-op that reports the
// current state.
//
// Ticks on the same run are serialized by a lock.Locker, and the store
// rejects a counter update whose expected batch count is stale, so two
// concurrent ticks can never both apply their deltas.
package controller
