package watcher

// Detector remembers the last successful body and decides whether a new one
// is a change worth acting on. It is owned by the loop goroutine.
type Detector struct {
	initTrigger bool
	prev        *string
}

func NewDetector(initTrigger bool) *Detector {
	return &Detector{initTrigger: initTrigger}
}

// Observe records body and reports whether the command should run.
// The first body only triggers when initTrigger is set.
func (d *Detector) Observe(body string) bool {
	act := (d.initTrigger && d.prev == nil) || (d.prev != nil && *d.prev != body)
	d.prev = &body
	return act
}
