package scheduler

import (
	"time"

	"github.com/layer-3/verigate/ports"
)

// Timer schedules callbacks on the runtime timer heap
type Timer struct{}

// New creates a scheduler backed by time.AfterFunc
func New() ports.Scheduler {
	return Timer{}
}

// AfterFunc runs f after d unless the returned cancel function is called first
func (Timer) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
