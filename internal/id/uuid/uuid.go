// Package uuid generates job IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 job IDs. Version 7 IDs sort by creation time,
// which keeps the jobs table index append-mostly.
type Generator struct{}

// NewUUIDGenerator creates a Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a new UUIDv7 string.
func (*Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return id.String(), nil
}
