package broker

import "time"

// rotationCheckInterval is how often the rotation loop checks whether the
// key store's RotationInterval has elapsed. It is independent of the
// rotation interval itself, which is typically hours.
const rotationCheckInterval = time.Minute

type rotationTicker struct {
	t *time.Ticker
}

func newRotationTicker() *rotationTicker {
	return &rotationTicker{t: time.NewTicker(rotationCheckInterval)}
}

func (r *rotationTicker) C() <-chan time.Time { return r.t.C }

func (r *rotationTicker) Stop() { r.t.Stop() }
