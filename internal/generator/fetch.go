package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"go-tarot-gen/internal/downloader"
)

const (
	defaultFetchRetries  = 5
	defaultFetchInterval = 2 * time.Second
)

// fetchOutput downloads a prediction's output image, retrying transient
// failures with exponential backoff. Permanent failures return at once.
func (g *Generator) fetchOutput(ctx context.Context, url string, logger *log.Entry) ([]byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.opts.FetchInterval
	expo.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(g.opts.FetchRetries-1)), ctx)

	attempts := 0
	var data []byte
	operation := func() error {
		attempts++
		out, err := g.fetcher.Fetch(ctx, url)
		if err == nil {
			data = out
			return nil
		}
		if ctx.Err() != nil || downloader.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WithError(err).Warnf("Output fetch attempt %d/%d failed, retrying in %s", attempts, g.opts.FetchRetries, wait.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if attempts >= g.opts.FetchRetries && !downloader.IsPermanent(err) {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		return nil, err
	}
	return data, nil
}
