package crawler

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

// ScrollMode selects how the harvester advances a lazily loaded list.
type ScrollMode string

const (
	// ScrollModeBottom jumps to the bottom of the scrollable body.
	ScrollModeBottom ScrollMode = "bottom"
	// ScrollModeKeys sends End or PageDown key presses.
	ScrollModeKeys ScrollMode = "keys"
)

// Surface is the part of a rendered page the harvester drives.
type Surface interface {
	// VisibleReviews returns the texts of the review items currently in the DOM.
	VisibleReviews() ([]string, error)
	ScrollToBottom() error
	PressKey(key string) error
}

type HarvestOptions struct {
	StableRounds int
	MaxRounds    int
	BaseDelay    time.Duration
	StableStep   time.Duration
	MinLength    int
	Mode         ScrollMode
}

func DefaultHarvestOptions() HarvestOptions {
	return HarvestOptions{
		StableRounds: 3,
		MaxRounds:    200,
		BaseDelay:    1000 * time.Millisecond,
		StableStep:   500 * time.Millisecond,
		MinLength:    10,
		Mode:         ScrollModeBottom,
	}
}

// Harvester scrolls a Surface until no new reviews appear for StableRounds
// consecutive rounds, or MaxRounds is reached.
type Harvester struct {
	opts   HarvestOptions
	sleep  func(time.Duration)
	random func() float64
	logger *slog.Logger
}

func NewHarvester(opts HarvestOptions, logger *slog.Logger) *Harvester {
	defaults := DefaultHarvestOptions()
	if opts.StableRounds <= 0 {
		opts.StableRounds = defaults.StableRounds
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaults.MaxRounds
	}
	if opts.MinLength <= 0 {
		opts.MinLength = defaults.MinLength
	}
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		opts:   opts,
		sleep:  time.Sleep,
		random: rand.Float64,
		logger: logger.With("component", "harvester"),
	}
}

// Harvest returns every distinct review seen, in first-seen order. A failed
// read counts as a round without new reviews; a cancelled context stops the
// loop and keeps what was collected.
func (h *Harvester) Harvest(ctx context.Context, s Surface) []string {
	seen := make(map[string]struct{})
	reviews := make([]string, 0)
	stable := 0

	rounds := 0
	for round := 0; round < h.opts.MaxRounds; round++ {
		if ctx.Err() != nil {
			h.logger.Warn("harvest cancelled", "round", round, "reviews", len(reviews))
			break
		}
		rounds++

		visible, err := s.VisibleReviews()
		if err != nil {
			h.logger.Warn("failed to read visible reviews", "round", round, "error", err)
		}

		added := 0
		for _, text := range visible {
			text = strings.TrimSpace(text)
			if utf8.RuneCountInString(text) <= h.opts.MinLength {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			reviews = append(reviews, text)
			added++
		}

		if added > 0 {
			stable = 0
		} else {
			stable++
		}
		h.logger.Debug("harvest round", "round", round+1, "new", added, "total", len(reviews), "stable", stable)

		if stable >= h.opts.StableRounds {
			break
		}

		h.scroll(s)
		h.sleep(h.opts.BaseDelay + time.Duration(stable)*h.opts.StableStep)
	}

	h.logger.Info("harvest finished", "rounds", rounds, "reviews", len(reviews))
	return reviews
}

func (h *Harvester) scroll(s Surface) {
	if h.opts.Mode != ScrollModeKeys {
		if err := s.ScrollToBottom(); err != nil {
			h.logger.Warn("scroll failed", "error", err)
		}
		return
	}

	key := "End"
	if h.random() >= 0.75 {
		key = "PageDown"
	}
	if err := s.PressKey(key); err != nil {
		h.logger.Debug("key scroll failed, falling back", "key", key, "error", err)
		if err := s.ScrollToBottom(); err != nil {
			h.logger.Warn("scroll failed", "error", err)
		}
	}
}
