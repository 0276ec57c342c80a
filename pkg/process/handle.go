package process

// Handle holds the state needed to track a live supervised child.
type Handle struct {
	PID    int
	ExitCh <-chan ChildExit
}

// IsRunning returns true if the handle refers to a live process.
func (h *Handle) IsRunning() bool {
	return h.PID > 0
}

// Clear resets the handle after the child has exited.
func (h *Handle) Clear() {
	h.PID = 0
	h.ExitCh = nil
}
