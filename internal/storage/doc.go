// Package storage answers persistence and usage queries for the
// workspace directory.
//
// Both operations are capability-gated: a host without a storage
// platform reports "not persisted" and "no estimate" instead of
// failing. Nothing is cached; every call reflects the filesystem as it
// is right now.
package storage
