// Package tasks orchestrates upstream reads against the local playlist cache.
//
// [Catalog] is what request handlers call. It resolves a user's access token, decides whether a
// playlist's videos can be served from the cache, and writes fetched pages back in the background:
//
//	no page token, cache has rows   -> cached rows, no upstream call
//	page token, or cache is empty   -> upstream page, then write-back
//
// The write-back fetches and upserts the playlist metadata, then replaces the cached videos for the
// playlist with the fetched page. It runs on a context detached from the request with its own timeout,
// and its errors are only logged. [Catalog.Wait] blocks until in-flight write-backs finish.
//
// A cursor-less read after the cache has been filled keeps returning the cached rows until a paginated
// fetch rewrites them. [Catalog.Refresh] walks every page of a user's playlists with a small worker pool
// for callers that want the cache brought current, reporting [ProgressUpdate] values as it goes.
package tasks
