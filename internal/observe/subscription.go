package observe

import "context"

// Result is one emission of a live query: either a value or the error the
// query produced. Errors do not end the subscription; the next change
// triggers another attempt.
type Result[T any] struct {
	Value T
	Err   error
}

// QueryFunc produces the current value of a live query.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Subscription delivers a fresh query result on start and after every change
// to the tables it watches. The caller must drain Updates until it is closed
// or call Cancel.
type Subscription[T any] struct {
	updates chan Result[T]
	done    chan struct{}
	cancel  context.CancelFunc
}

// Watch starts a live query. The listener is registered before the first
// query runs so a write racing the initial read is never missed.
func Watch[T any](ctx context.Context, n *Notifier, query QueryFunc[T], tables ...Table) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	signal, release := n.Listen(tables...)

	s := &Subscription[T]{
		updates: make(chan Result[T]),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.updates)
		defer release()

		for {
			value, err := query(ctx)
			if ctx.Err() != nil {
				return
			}

			select {
			case s.updates <- Result[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// Map derives a subscription whose values are fn applied to src's values.
// Errors from src pass through untouched. Cancelling the derived
// subscription cancels src.
func Map[T, U any](src *Subscription[T], fn func(T) (U, error)) *Subscription[U] {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Subscription[U]{
		updates: make(chan Result[U]),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.updates)
		defer src.Cancel()

		for {
			var in Result[T]
			var ok bool
			select {
			case in, ok = <-src.Updates():
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			out := Result[U]{Err: in.Err}
			if in.Err == nil {
				out.Value, out.Err = fn(in.Value)
			}

			select {
			case s.updates <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// Updates returns the channel of results. It is closed once the
// subscription ends.
func (s *Subscription[T]) Updates() <-chan Result[T] {
	return s.updates
}

// Cancel stops the subscription and waits for its goroutine to exit. It has
// no effect on the store and is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed after the subscription has fully stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}
