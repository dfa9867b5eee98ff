// Package repository implements the domain repositories of the photo
// sharing service: photos, comments, users and QR codes.
//
// Every read goes through a cachequery executor, so repeated queries are
// served from the configured cache backend, and every write announces
// itself on the shared bus so stale entries fall across aggregates (a new
// comment clears the cached photo graph that embeds the comment list).
// Repositories built without a cache backend behave identically, minus the
// memoization.
package repository
