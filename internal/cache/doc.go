// Package cache stores synthesized chunk audio so that re-running a
// conversion, or converting a book that shares text with another, skips
// work already done. A small in-memory LRU fronts a compressed disk store.
package cache
