// Package dev serves a directory of pages during development.
//
// Requests for HTML pages go through the interactivity runtime first when
// server directives are enabled: the page is parsed, seeded from its state
// blobs, hydrated once and rendered back, so the browser receives the
// markup the directives produce. Turning server directives off serves the
// raw files, which helps telling hydration bugs from pre-processing bugs.
//
// # Hot Reload Protocol
//
// With watching enabled the pages directory is watched with fsnotify and
// every served page connects to /_islands/reload via WebSocket. Messages
// are JSON-encoded:
//
//	{"type": "reload"}                // full page reload
//	{"type": "css", "file": "..."}    // stylesheet reload
//	{"type": "error", "error": "..."} // warnings or render errors overlay
//	{"type": "clear"}                 // clears the overlay
package dev
