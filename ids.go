package scheduler

import "github.com/google/uuid"

// generateID produces a task id for descriptors that omit one.
func generateID() string {
	return uuid.NewString()
}
