package live

import (
	"context"
	"sync"
)

// Watch keeps a value in sync with a topic: it loads once synchronously, hands
// the result to apply, then reloads and re-applies after every signal on topic.
// Deliveries for one Watch happen on a single goroutine, in order.
//
// A failed initial load is returned and nothing is left running. Later load
// failures go to onErr and the previous value stays in place until the next
// signal. The returned cancel stops the watch and waits for an in-flight
// delivery to finish.
func Watch[T any](
	ctx context.Context,
	hub *Hub,
	topic string,
	load func(context.Context) (T, error),
	apply func(T),
	onErr func(error),
) (cancel func(), err error) {
	// Subscribe before the first load so a change between the two is not lost.
	signals, unsubscribe := hub.Subscribe(topic)

	initial, err := load(ctx)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	apply(initial)

	ctx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			}

			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				continue
			}
			apply(v)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			unsubscribe()
			wg.Wait()
		})
	}, nil
}
