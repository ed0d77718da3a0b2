// Package uuid provides the UUID-backed id generator.
package uuid

import "github.com/google/uuid"

// Generator issues random UUID strings for new jobs.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a new UUIDv4 string.
func (Generator) NewID() string {
	return uuid.NewString()
}
