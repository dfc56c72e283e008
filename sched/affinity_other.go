//go:build !linux

package sched

// pinToCPU is a no-op on platforms without sched_setaffinity; pool.go's
// default var already covers this but the build tag keeps the intent
// explicit and gives non-Linux builds a place to add their own primitive
// later (e.g. Darwin's thread affinity tag API) without touching pool.go.
