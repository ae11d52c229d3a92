// Package router implements client-side navigation over a hydrated
// document.
//
// A navigation resolves the target against the current location, fetches
// the page through a Fetcher and, back on the runtime thread, diffs every
// router region (data-wp-router-region) of the live document against the
// region with the same id in the page. Only regions are patched; the head
// keeps its identity, its title is updated and new stylesheets appended.
// Server state embedded in the page is merge-patched into the store.
//
// # Races
//
// Requests get increasing ids. A resolved page is always diffed but only
// applied when no higher id has committed yet, so a slow early request
// never overwrites a later one. Superseded fetches are not aborted.
//
//	req, err := r.Navigate(ctx, "/blog/")
//	if err != nil {
//	    // not same-origin: let the browser handle it
//	}
//	sched.Wait(ctx)
//	fmt.Println(req.Status) // committed, stale or failed
//
// # Fetchers
//
// HTTPFetcher loads pages over HTTP, S3Fetcher reads a statically
// exported site from a bucket, MapFetcher serves pages from memory.
package router
