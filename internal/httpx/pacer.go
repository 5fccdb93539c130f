package httpx

import (
	"time"
)

// Pacer inserts a fixed pause between consecutive requests of one crawl. The
// pause is deliberately not tied to a context: pagination always honors it.
// A Pacer is not safe for concurrent use; create one per crawl.
type Pacer struct {
	delay   time.Duration
	sleep   func(time.Duration)
	started bool
}

func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, sleep: time.Sleep}
}

// Wait returns immediately on the first call and sleeps the full delay on
// every later call.
func (p *Pacer) Wait() {
	if p.started && p.delay > 0 {
		p.sleep(p.delay)
	}
	p.started = true
}

func (p *Pacer) Delay() time.Duration {
	return p.delay
}
