package quality

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

// DefaultStaleness is the age past which cached metrics are recomputed even
// if the rectangle has not moved, covering lighting drift between captures.
const DefaultStaleness = 2 * time.Second

// Fingerprint identifies the rectangle a set of metrics was computed
// against. Results carrying a fingerprint that no longer matches the
// region's current rectangle are discarded, not stored.
type Fingerprint string

// FingerprintOf derives the fingerprint of a rectangle.
func FingerprintOf(r geometry.Rect) Fingerprint {
	return Fingerprint(fmt.Sprintf("%.2f:%.2f:%.2f:%.2f", r.X, r.Y, r.Width, r.Height))
}

// Enricher supplies optional recognition confidences for a region. Failures
// surface as nil fields in the returned Confidence, never as errors.
type Enricher interface {
	Enrich(region annotation.Region, img image.Image) Confidence
}

// Guidance is one ranked entry: advisory output only, it never mutates the
// store.
type Guidance struct {
	Key        string
	Name       string
	Score      float64
	Metrics    Metrics
	Confidence Confidence
}

type entry struct {
	metrics     Metrics
	conf        Confidence
	fingerprint Fingerprint
	computedAt  time.Time
}

// Options configure a Pipeline.
type Options struct {
	Staleness time.Duration // 0 means DefaultStaleness
	Workers   int           // concurrent background computations, default 2
	Enricher  Enricher
	Logger    *slog.Logger
}

// Pipeline caches per-region metrics keyed by region key, recomputing when a
// rectangle changes or the cache entry outlives the staleness window.
// Background recomputation is bounded by a worker semaphore; its results are
// last-write-wins by fingerprint.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	img    image.Image
	cache  map[string]entry
	latest map[string]Fingerprint
}

// NewPipeline creates a pipeline with no image bound yet.
func NewPipeline(opts Options) *Pipeline {
	if opts.Staleness <= 0 {
		opts.Staleness = DefaultStaleness
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		opts:   opts,
		logger: logger,
		sem:    make(chan struct{}, opts.Workers),
		cache:  map[string]entry{},
		latest: map[string]Fingerprint{},
	}
}

// BindImage replaces the sampled image and drops every cached metric.
func (p *Pipeline) BindImage(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.img = img
	p.cache = map[string]entry{}
	p.latest = map[string]Fingerprint{}
}

// Invalidate marks the region's current rectangle as the one metrics must
// match and schedules a background recompute. A result computed against an
// older rectangle is discarded when it lands.
func (p *Pipeline) Invalidate(region annotation.Region) {
	fp := FingerprintOf(region.Rect)
	p.mu.Lock()
	p.latest[region.Key] = fp
	img := p.img
	p.mu.Unlock()
	if img == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		p.computeAndStore(region, img, fp)
	}()
}

// Forget drops the cached metrics for a removed region.
func (p *Pipeline) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, key)
	delete(p.latest, key)
}

// Rank scores the given regions, reusing cached metrics where fresh and
// recomputing inline where not, and returns them ordered best first. Equal
// scores keep their input order.
func (p *Pipeline) Rank(regions []annotation.Region) []Guidance {
	p.mu.Lock()
	img := p.img
	p.mu.Unlock()
	if img == nil {
		return nil
	}

	out := make([]Guidance, 0, len(regions))
	for _, r := range regions {
		m, conf := p.metricsFor(r, img)
		out = append(out, Guidance{
			Key:        r.Key,
			Name:       r.Name,
			Score:      Score(r.Role, m, conf),
			Metrics:    m,
			Confidence: conf,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Wait blocks until scheduled background recomputation has drained.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) metricsFor(region annotation.Region, img image.Image) (Metrics, Confidence) {
	fp := FingerprintOf(region.Rect)
	p.mu.Lock()
	e, ok := p.cache[region.Key]
	p.latest[region.Key] = fp
	staleness := p.opts.Staleness
	p.mu.Unlock()

	if ok && e.fingerprint == fp && time.Since(e.computedAt) < staleness {
		return e.metrics, e.conf
	}

	p.computeAndStore(region, img, fp)
	p.mu.Lock()
	e = p.cache[region.Key]
	p.mu.Unlock()
	return e.metrics, e.conf
}

func (p *Pipeline) computeAndStore(region annotation.Region, img image.Image, fp Fingerprint) {
	m := Compute(img, region.Rect)
	var conf Confidence
	if p.opts.Enricher != nil && m.SampleArea >= MinSampleArea {
		conf = p.opts.Enricher.Enrich(region, img)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest[region.Key] != fp {
		p.logger.Debug("discarding metrics for a moved rectangle",
			"key", region.Key, "fingerprint", string(fp))
		return
	}
	p.cache[region.Key] = entry{
		metrics:     m,
		conf:        conf,
		fingerprint: fp,
		computedAt:  time.Now(),
	}
}
