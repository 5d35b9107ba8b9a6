// Package search implements the incremental search controller used by the
// product picker.
//
// A Controller owns the query text, the current page index, the accumulated
// results and the loading / has-more flags of one picker session. It never
// performs I/O itself: SetQuery, RequestNextPage and Retry return a Command
// that the caller runs off the event loop, and the Completion it produces is
// handed back to Apply on the loop.
//
// Every query change starts a new epoch. Completions carry the epoch and a
// sequence number; Apply discards completions from older epochs, so results
// of superseded queries can never reach the visible list. Superseded fetches
// are also cancelled through their context.
//
// Example usage:
//
//	ctrl, err := search.New(catalogClient, search.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	cmd := ctrl.SetQuery("hat")
//	outcome := ctrl.Apply(cmd())
//	if next := ctrl.RequestNextPage(); next != nil {
//		outcome = ctrl.Apply(next())
//	}
//
// A Controller is not safe for concurrent use. Commands are.
package search
