// Package repository persists events, snapshots and audit rows.  Lookups
// report absence with the model.ErrXNotFound sentinels; a conditional
// update that matched no row reports ErrConflict so that callers can decide
// how to surface a lost race.
package repository

import "errors"

// ErrConflict is returned when a conditional UPDATE affected no row because
// the stored version or lease no longer matches what the caller read.
// Engine components translate this into a domain error.
var ErrConflict = errors.New("conflict")
