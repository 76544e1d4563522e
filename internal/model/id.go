package model

import (
	"io"

	"github.com/google/uuid"
)

// NewID derives a chromosome identifier from r. Passing the run's seeded
// random source keeps identifiers reproducible between runs.
func NewID(r io.Reader) string {
	if r == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
