// Package reconcile decides what to do with each upstream record: create or
// overwrite a catalog entry, write or skip a daily measurement. Reconcilers
// hold no state between calls; the store owns every uniqueness rule.
package reconcile

import "github.com/rotisserie/eris"

// ErrValidation is returned when a record lacks a required field.
var ErrValidation = eris.New("reconcile: validation failed")

// Kind tags the result of reconciling one record.
type Kind int

const (
	// Created means a new row was inserted.
	Created Kind = iota + 1
	// Updated means an existing catalog row was overwritten.
	Updated
	// Written means a new measurement row was inserted.
	Written
	// Duplicate means the row already existed and nothing was written.
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Written:
		return "written"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
