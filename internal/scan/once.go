package scan

import (
	"context"
)

// ScanOnce runs a session until the first serial, a stream failure, or ctx is
// done, and always leaves the camera released. Callers that want a deadline
// wrap ctx with one.
func ScanOnce(ctx context.Context, media MediaDevices, decoder Decoder, extractor Extractor, deviceID string, opts ...Option) (string, error) {
	results := make(chan string, 1)
	failures := make(chan error, 1)

	opts = append(opts, WithErrorHandler(func(err error) {
		failures <- err
	}))
	session := NewSession(media, decoder, extractor, func(serial string) {
		results <- serial
	}, opts...)
	defer session.Stop()

	if err := session.Start(ctx, deviceID); err != nil {
		return "", err
	}

	select {
	case serial := <-results:
		return serial, nil
	case err := <-failures:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
