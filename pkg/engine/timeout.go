package engine

import (
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs longer than the engine's
	// timeout.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned for an evaluation that finished after a
	// newer one was started.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult passes evaluation results through channels.
type evalResult struct {
	result EvalResult
	err    error
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return EvalTimeout
}

// wait returns the result sent on ch for generation gen. On timeout the
// evaluating goroutine keeps running; its result is dropped because ch is
// buffered and nobody reads it.
func (e *Engine) wait(ch <-chan evalResult, gen uint64) (EvalResult, error) {
	limit := e.timeout()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()

		if gen != current {
			return EvalResult{}, ErrSuperseded
		}
		return res.result, res.err

	case <-timer.C:
		return EvalResult{}, fmt.Errorf("%w after %s", ErrTimeout, limit)
	}
}
