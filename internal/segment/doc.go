// Package segment defines completed speech segments and the bounded
// per-channel hand-off queues between the capture stage and the dispatch
// workers. Queues never block the producer: when full, the oldest entry is
// evicted to admit the newest.
package segment
