// Package registry caches translated components by content hash.
//
// The cache is bounded: once more components are registered than the
// configured capacity, the least recently used entry is evicted, with
// ties broken by age. Lookup and Load refresh recency; List and Status
// do not. Components move between loaded and unloaded states without
// losing their cache entry, so an unload followed by an execute is
// transparent to callers.
package registry
