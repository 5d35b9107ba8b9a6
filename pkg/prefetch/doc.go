// Package prefetch warms the response cache by fetching the first pages of
// a query in parallel.
//
// The catalog reports no total page count, so the warmer fetches page 0,
// then pages 1..MaxPages-1 through a bounded worker pool, and drops every
// page at or after the first empty one. A failing page stops its worker;
// the pages fetched so far are returned together with the error.
//
// The proxy runs a warmer at startup for the empty query, which is the
// first request every picker makes:
//
//	w, err := prefetch.New(catalogClient, prefetch.DefaultConfig())
//	pages, err := w.Warm(ctx, "")
package prefetch
