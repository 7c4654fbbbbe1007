package site

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a sync is requested while another is running
	ErrBusy = errors.New("sync already in progress")
	// ErrNoEntryDocument is returned when a fetched tree has no index.html at its root
	ErrNoEntryDocument = errors.New("site has no " + EntryDocument)
)

// SyncError reports which step of a sync failed
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
