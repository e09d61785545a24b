//go:build !js

package scheduler

// DefaultDriver returns the blocking loop driver used on native targets.
func DefaultDriver() Driver {
	return &LoopDriver{}
}
