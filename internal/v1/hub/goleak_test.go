package hub

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no goroutine started by this package's tests is
// still running once they finish. The registry's only background
// goroutine is the per-room bus subscription relay spawned in
// GetOrCreate; every test in this package that wires a bus must cancel it
// (via DropIfEmpty) before returning, exactly as the teacher's
// room/goleak_test.go holds Subscribe accountable for Shutdown cleanup.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
