// Janitor is a data-retention engine that purges expired data in small,
// checkpointed batches.
//
// It runs cleanup jobs against declared data categories (database tables,
// storage buckets, cache indexes) without long transactions:
//   - One active run per category, paused, resumed or stopped at any time
//   - Bounded batch deletes, oldest first, safe to retry blindly
//   - Transient failures recorded with a retry-after hint
//   - A cron-driven drain loop and an HTTP RPC endpoint for admin tooling
//
// Usage:
//
//	# Serve the RPC endpoint and run the scheduled drain loop
//	janitor serve --config janitor.yaml
//
//	# List categories and their latest runs
//	janitor categories
//
//	# Start a run and tick it until the category is clean
//	janitor start messages
//	janitor tick <run-id> --until-done
//
//	# Estimate how much a run would delete
//	janitor scan messages --cutoff 2025-01-01
package main

func main() {
	Execute()
}
