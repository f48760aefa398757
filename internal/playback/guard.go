// Package playback enforces the non-skippable viewing contract over a media
// element: the learner may rewind freely but never jump past the furthest
// point reached by watching.
package playback

import "math"

const (
	// DefaultEpsilon tolerates decoder jitter when comparing a seek target
	// against the furthest position.
	DefaultEpsilon = 0.25
	// DefaultMaxStep bounds how far one time update may move past the
	// furthest position. Clients report time updates at least every second.
	DefaultMaxStep = 2.0
	// DefaultWatchedThreshold is the fraction of a cue-less lesson that must
	// be watched for it to count.
	DefaultWatchedThreshold = 0.85
)

// Media is the stateful media element the guard controls. Positions and
// durations are in seconds.
type Media interface {
	Position() float64
	SetPosition(pos float64)
	Duration() float64
	Play() error
	Pause()
}

// GuardConfig holds optional guard settings.
type GuardConfig struct {
	Epsilon          float64
	MaxStep          float64
	WatchedThreshold float64
	// FallbackDuration is used while the media reports no duration.
	FallbackDuration float64
	// Furthest seeds the furthest reached position, e.g. on resume.
	Furthest float64
}

// Guard tracks the furthest reached position of one lesson's media.
type Guard struct {
	media            Media
	furthest         float64
	epsilon          float64
	maxStep          float64
	threshold        float64
	fallbackDuration float64
}

// NewGuard wraps media.
func NewGuard(media Media, cfg GuardConfig) *Guard {
	eps := cfg.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	step := cfg.MaxStep
	if step <= 0 {
		step = DefaultMaxStep
	}
	threshold := cfg.WatchedThreshold
	if threshold <= 0 {
		threshold = DefaultWatchedThreshold
	}
	return &Guard{
		media:            media,
		furthest:         math.Max(0, cfg.Furthest),
		epsilon:          eps,
		maxStep:          math.Max(eps, step),
		threshold:        threshold,
		fallbackDuration: cfg.FallbackDuration,
	}
}

// Advance records playback progress reported by a time update and returns
// the live position. A position more than one step past furthest is a skip:
// the media is forced back to furthest and rejected is true.
func (g *Guard) Advance() (pos float64, rejected bool) {
	pos = g.position()
	if pos > g.furthest+g.maxStep {
		g.media.SetPosition(g.furthest)
		return g.furthest, true
	}
	if pos > g.furthest {
		g.furthest = pos
	}
	return pos, false
}

// Seek validates a learner-initiated seek. A target beyond furthest+epsilon
// is rejected and the media is forced back to furthest. Seeking never moves
// furthest.
func (g *Guard) Seek() (pos float64, rejected bool) {
	pos = g.position()
	if pos > g.furthest+g.epsilon {
		g.media.SetPosition(g.furthest)
		return g.furthest, true
	}
	return pos, false
}

// Reposition moves playback for the engine itself, clamped to [0, furthest].
func (g *Guard) Reposition(pos float64) float64 {
	pos = math.Max(0, math.Min(pos, g.furthest))
	g.media.SetPosition(pos)
	return pos
}

// Furthest returns the furthest position reached through playback.
func (g *Guard) Furthest() float64 {
	return g.furthest
}

// Duration returns the media duration, or the fallback when unknown.
func (g *Guard) Duration() float64 {
	d := g.media.Duration()
	if d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d) {
		return d
	}
	return g.fallbackDuration
}

// Fraction returns the live position divided by the duration, 0 when the
// duration is unknown.
func (g *Guard) Fraction() float64 {
	d := g.Duration()
	if d <= 0 {
		return 0
	}
	return math.Min(1, g.position()/d)
}

// ReachedThreshold reports whether the live fraction crossed the watched
// threshold.
func (g *Guard) ReachedThreshold() bool {
	return g.Fraction() >= g.threshold
}

func (g *Guard) position() float64 {
	pos := g.media.Position()
	if math.IsNaN(pos) || pos < 0 {
		return 0
	}
	return pos
}
