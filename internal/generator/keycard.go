package generator

import (
	"context"
	"sync"
)

// keyCardFuture hands a key card's output path to the cards that depend on it.
// It is resolved exactly once; later calls to resolve are ignored.
type keyCardFuture struct {
	done chan struct{}
	once sync.Once
	path string
	err  error
}

func newKeyCardFuture() *keyCardFuture {
	return &keyCardFuture{done: make(chan struct{})}
}

// resolvedFuture returns a future that is already complete.
func resolvedFuture(path string, err error) *keyCardFuture {
	f := newKeyCardFuture()
	f.resolve(path, err)
	return f
}

func (f *keyCardFuture) resolve(path string, err error) {
	f.once.Do(func() {
		f.path, f.err = path, err
		close(f.done)
	})
}

// wait blocks until the key card finishes or ctx is done.
func (f *keyCardFuture) wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.path, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
