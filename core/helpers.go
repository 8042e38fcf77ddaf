package orchestration

import "fmt"

type workerRun func() error

func panicSafeNamedWorker(name string, run func() error) workerRun {
	return func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// guardCallback runs a hot-path callback and converts a panic into a logged
// no-op. Nothing is allowed to panic across the capture-driver boundary.
func guardCallback(name string, callback func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("callback panicked", "callback", name, "panic", recovered)
		}
	}()

	callback()
}
