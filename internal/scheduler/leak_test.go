package scheduler

import (
	"testing"

	"go.uber.org/goleak"
)

// The scheduler spins up a worker pool per Build call; every test in
// this package must leave zero goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
