// Package work runs background jobs on a small bounded pool.
//
// # Why a pool
//
// Both the scheduler and cache-miss refreshes need to do slow network and
// database work (quote sources, generation providers, the news crawler).
// None of that may run on a request goroutine or on the cron goroutine, and
// the number of concurrent outbound generation calls has to stay small, so
// every producer run goes through a single Pool:
//
//   - workers: 3 by default (WORKER_POOL_SIZE)
//   - queue: 32 pending tasks (WORKER_QUEUE_SIZE); Submit never blocks and
//     reports false when the queue is full
//   - per-task timeout: 7 minutes, enough for a sequential analysis run
//     against a slow provider with fallback
//
// Stop closes the queue, lets queued tasks drain and waits for the workers.
// If the stop context expires first, running tasks see their context
// cancelled.
package work
