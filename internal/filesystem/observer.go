package filesystem

// Observer receives per-operation measurements. The metrics package
// implements it; filesystem cannot import metrics without a cycle.
//
// volume is a resolver label such as "uploads" and op is one of "stat",
// "readdir", "rename" or "remove".
type Observer interface {
	ObserveOperation(volume, op string, durationSeconds float64, err error)
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveStaleError(op, volume string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)              {}
func (nopObserver) ObserveRetrySuccess(string, string)              {}
func (nopObserver) ObserveRetryFailure(string, string)              {}
func (nopObserver) ObserveStaleError(string, string)                {}

var observer Observer = nopObserver{}

// SetObserver installs the process-wide observer. nil restores the no-op.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	observer = o
}
