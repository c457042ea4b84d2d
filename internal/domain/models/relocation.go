package models

import "time"

// RelocationCmd names the operation that produced a relocation record
type RelocationCmd string

const (
	// RelocationChangeRoot files were copied or moved under a new root
	RelocationChangeRoot RelocationCmd = "change_root"
)

// Relocation is an append-only record of a resource moving to a new root.
// The Resource document itself is never rewritten.
type Relocation struct {
	ID         string
	ResourceID string
	Cmd        RelocationCmd
	OldRoot    string
	NewRoot    string
	Removed    bool
	Time       time.Time
}
