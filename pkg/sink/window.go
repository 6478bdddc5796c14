package sink

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"
)

// Window defaults applied when WindowAdd touches a window that was never
// configured.
const (
	DefaultWindowMaxItems = 100
	DefaultWindowMaxAge   = 10 * time.Minute
)

// WindowConfig bounds one named window.
type WindowConfig struct {
	// MaxItems caps the entry count; the oldest entries are dropped first.
	MaxItems int

	// MaxAge caps entry lifetime. Age eviction runs before capacity
	// eviction.
	MaxAge time.Duration
}

// DefaultWindowConfig returns the bounds of a lazily created window.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{MaxItems: DefaultWindowMaxItems, MaxAge: DefaultWindowMaxAge}
}

// Entry is one element of a named sliding window.
type Entry struct {
	// Key groups related entries, e.g. the identity a burst detector
	// counts.
	Key string `json:"key"`

	// Entity is the collected payload.
	Entity any `json:"entity"`

	// Fingerprint is a stable hash over Key and Entity, used for grouping
	// and for explicit processed-marking.
	Fingerprint string `json:"fingerprint"`

	// CollectedAt is when the entry was added, per the sink clock.
	CollectedAt time.Time `json:"collectedAt"`

	// Processed is set via MarkProcessed; GetUnprocessed filters on it.
	Processed bool `json:"processed"`
}

// WindowStats summarizes a window at a point in time. It is derived on
// demand and never cached.
type WindowStats struct {
	Count    int           `json:"count"`
	Oldest   time.Time     `json:"oldest"`
	Newest   time.Time     `json:"newest"`
	Timespan time.Duration `json:"timespan"`
}

// Valuer exposes the numeric value of a window entity. Pattern detectors
// and reducers fold over it.
type Valuer interface {
	NumericValue() (float64, bool)
}

// window holds entries in CollectedAt order, oldest first.
type window struct {
	cfg     WindowConfig
	entries []Entry
}

// ConfigureWindow creates the named window with the given bounds, or
// rebounds an existing one. Tighter bounds evict immediately.
func (s *Sink) ConfigureWindow(name string, cfg WindowConfig) {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultWindowMaxItems
	}

	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultWindowMaxAge
	}

	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()

	w, ok := s.windows[name]
	if !ok {
		s.windows[name] = &window{cfg: cfg}

		return
	}

	w.cfg = cfg
	w.evict(s.opts.Clock.Now())
}

// WindowAdd pushes {key, entity, now} into the named window, creating it
// with the default bounds when needed, then evicts by age and capacity.
func (s *Sink) WindowAdd(name, key string, entity any) {
	now := s.opts.Clock.Now()

	entry := Entry{
		Key:         key,
		Entity:      entity,
		Fingerprint: fingerprint(key, entity),
		CollectedAt: now,
	}

	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()

	w, ok := s.windows[name]
	if !ok {
		w = &window{cfg: DefaultWindowConfig()}
		s.windows[name] = w
	}

	w.entries = append(w.entries, entry)
	w.evict(now)
}

// WindowQuery returns a snapshot of the named window, ordered by
// CollectedAt ascending. Expired entries are excluded; unknown windows
// yield nil.
func (s *Sink) WindowQuery(name string) []Entry {
	now := s.opts.Clock.Now()

	s.windowsMu.RLock()
	defer s.windowsMu.RUnlock()

	w, ok := s.windows[name]
	if !ok {
		return nil
	}

	return slices.Clone(w.live(now))
}

// WindowSample returns n entries drawn uniformly without replacement.
func (s *Sink) WindowSample(name string, n int) []Entry {
	return s.sample(name, n, rand.Uint64())
}

// WindowSampleSeeded is WindowSample with a caller-supplied seed for
// reproducible draws.
func (s *Sink) WindowSampleSeeded(name string, n int, seed uint64) []Entry {
	return s.sample(name, n, seed)
}

func (s *Sink) sample(name string, n int, seed uint64) []Entry {
	entries := s.WindowQuery(name)
	if n <= 0 || len(entries) == 0 {
		return nil
	}

	if n >= len(entries) {
		return entries
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})

	picked := entries[:n]
	slices.SortStableFunc(picked, func(a, b Entry) int {
		return a.CollectedAt.Compare(b.CollectedAt)
	})

	return picked
}

// WindowStats derives the stats of the live entries of the named window.
// Unknown or fully expired windows yield the zero stats.
func (s *Sink) WindowStats(name string) WindowStats {
	now := s.opts.Clock.Now()

	s.windowsMu.RLock()
	defer s.windowsMu.RUnlock()

	w, ok := s.windows[name]
	if !ok {
		return WindowStats{}
	}

	entries := w.live(now)
	if len(entries) == 0 {
		return WindowStats{}
	}

	oldest := entries[0].CollectedAt
	newest := entries[len(entries)-1].CollectedAt

	return WindowStats{
		Count:    len(entries),
		Oldest:   oldest,
		Newest:   newest,
		Timespan: newest.Sub(oldest),
	}
}

// WindowNames returns the names of all live windows, sorted.
func (s *Sink) WindowNames() []string {
	s.windowsMu.RLock()
	defer s.windowsMu.RUnlock()

	names := make([]string, 0, len(s.windows))
	for name := range s.windows {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// GetUnprocessed returns the live entries not yet marked processed.
func (s *Sink) GetUnprocessed(name string) []Entry {
	now := s.opts.Clock.Now()

	s.windowsMu.RLock()
	defer s.windowsMu.RUnlock()

	w, ok := s.windows[name]
	if !ok {
		return nil
	}

	var out []Entry

	for _, e := range w.live(now) {
		if !e.Processed {
			out = append(out, e)
		}
	}

	return out
}

// MarkProcessed flags the entries with the given fingerprints and returns
// how many were newly marked.
func (s *Sink) MarkProcessed(name string, fingerprints ...string) int {
	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()

	w, ok := s.windows[name]
	if !ok {
		return 0
	}

	w.evict(s.opts.Clock.Now())

	marked := 0

	for i := range w.entries {
		if w.entries[i].Processed {
			continue
		}

		if slices.Contains(fingerprints, w.entries[i].Fingerprint) {
			w.entries[i].Processed = true
			marked++
		}
	}

	return marked
}

// DropWindow removes the named window entirely.
func (s *Sink) DropWindow(name string) {
	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()

	delete(s.windows, name)
}

// live returns the non-expired suffix of the entries without mutating the
// window. Writers reclaim the expired prefix via evict; readers only need
// the view. Callers hold the windows lock.
func (w *window) live(now time.Time) []Entry {
	cut := 0
	for cut < len(w.entries) && now.Sub(w.entries[cut].CollectedAt) > w.cfg.MaxAge {
		cut++
	}

	return w.entries[cut:]
}

// evict applies age-first then capacity drop-oldest. Callers hold the
// windows lock.
func (w *window) evict(now time.Time) {
	cut := 0
	for cut < len(w.entries) && now.Sub(w.entries[cut].CollectedAt) > w.cfg.MaxAge {
		cut++
	}

	if over := len(w.entries) - cut - w.cfg.MaxItems; over > 0 {
		cut += over
	}

	if cut > 0 {
		w.entries = slices.Clone(w.entries[cut:])
	}
}

// NumericValue extracts a float from a window entity. Structured entities
// implement Valuer; JSON-decoded entities expose a "value" field; plain
// numbers convert directly.
func NumericValue(entity any) (float64, bool) {
	switch v := entity.(type) {
	case Valuer:
		return v.NumericValue()
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case map[string]any:
		nested, ok := v["value"]
		if !ok {
			return 0, false
		}

		return NumericValue(nested)
	default:
		return 0, false
	}
}

// fingerprint hashes key and the canonical encoding of entity. Stable for
// any entity whose JSON form is stable.
func fingerprint(key string, entity any) string {
	h := fnv.New64a()

	h.Write([]byte(key))
	h.Write([]byte{0})

	if encoded, err := json.Marshal(entity); err == nil {
		h.Write(encoded)
	} else {
		fmt.Fprintf(h, "%v", entity)
	}

	return strconv.FormatUint(h.Sum64(), 16)
}
