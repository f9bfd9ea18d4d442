// Package batch runs many independent searches concurrently.
//
// A Runner submits each query to an ants worker pool and collects the
// responses in query order. Every query still runs the ordinary
// single-threaded search pipeline; only separate queries overlap.
// Progress can be reported to a writer while a batch runs.
package batch
