package repositories

import "errors"

// ErrCursorConflict is returned by a batch commit when the indexer cursor no
// longer holds the value read before fetching. It means another writer
// committed for the same indexer; the batch must be discarded.
var ErrCursorConflict = errors.New("indexer cursor changed during batch")

// ErrNotFound is returned by updates that target a missing row
var ErrNotFound = errors.New("not found")
