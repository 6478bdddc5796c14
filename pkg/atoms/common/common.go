// Package common holds the signal vocabulary and payload types the built-in
// atoms exchange. Producers and consumers agree on names through this
// package instead of importing each other.
package common

import (
	"sort"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/signal"
	"github.com/axonworks/axon/pkg/sink"
)

// Signal names of the built-in atom surface.
const (
	// EntriesBatch carries a []Entry payload between atoms.
	EntriesBatch = "entries.batch"

	// EntryAdd carries a single entry, typically injected as a run input.
	EntryAdd = "entry.add"

	// WindowReady announces that a named window holds fresh content. The
	// payload is a map with "window" and "count" fields.
	WindowReady = "window.ready"

	// RankedList is the generic name for a []Scored payload produced
	// outside the built-in scorers.
	RankedList = "ranked.list"

	AccumulatorCount = "accumulator.count"
	ReduceResult     = "reduce.result"

	BM25Results  = "bm25.results"
	TFIDFResults = "tfidf.results"
	TFIDFTerms   = "tfidf.terms"
	RRFResults   = "rrf.results"
	MMRResults   = "mmr.results"

	TopKResults = "topk.results"
	TopKCount   = "topk.count"
	TopKDropped = "topk.dropped"

	DedupResults           = "dedup.results"
	DedupClusters          = "dedup.clusters"
	DedupDuplicatesRemoved = "dedup.duplicates_removed"

	BurstDetected    = "burst.detected"
	BurstCount       = "burst.count"
	BurstRate        = "burst.rate"
	BurstDescription = "burst.description"

	PeriodicDetected = "periodic.detected"

	SentimentScore = "sentiment.score"
	GeneratedText  = "generate.text"
	ReportStored   = "report.stored"
)

// ConfigWindow is the config key naming the sink window an atom reads or
// fills.
const ConfigWindow = "window"

// Entry is the unit of content the accumulation and scoring atoms exchange:
// a keyed payload with optional text, numeric value, and embedding.
type Entry struct {
	Key       string    `json:"key,omitempty"`
	Text      string    `json:"text,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// NumericValue implements sink.Valuer so reducers and pattern detectors can
// fold window entities without knowing the entry type.
func (e Entry) NumericValue() (float64, bool) {
	return e.Value, true
}

// Identity returns the token fusion and dedup group by: the key when set,
// otherwise the text.
func (e Entry) Identity() string {
	if e.Key != "" {
		return e.Key
	}

	return e.Text
}

// Scored pairs an entry with the score a ranking atom assigned.
type Scored struct {
	Entry
	Score float64 `json:"score"`
}

// WrapScored lifts plain entries into a zero-scored ranked list.
func WrapScored(entries []Entry) []Scored {
	out := make([]Scored, len(entries))
	for i, e := range entries {
		out[i] = Scored{Entry: e}
	}

	return out
}

// DecodeEntries coerces a signal payload into entries. It accepts native
// Entry and Scored values and slices, plain strings, string slices, and the
// map forms JSON-decoded workflow inputs produce. Returns nil when the
// payload holds nothing decodable.
func DecodeEntries(v any) []Entry {
	switch p := v.(type) {
	case nil:
		return nil
	case []Entry:
		out := make([]Entry, len(p))
		copy(out, p)

		return out
	case []Scored:
		out := make([]Entry, len(p))
		for i, s := range p {
			out[i] = s.Entry
		}

		return out
	case Entry:
		return []Entry{p}
	case Scored:
		return []Entry{p.Entry}
	case string:
		if p == "" {
			return nil
		}

		return []Entry{{Text: p}}
	case []string:
		out := make([]Entry, 0, len(p))
		for _, s := range p {
			out = append(out, Entry{Text: s})
		}

		return out
	case map[string]any:
		e, ok := entryFromMap(p)
		if !ok {
			return nil
		}

		return []Entry{e}
	case []any:
		out := make([]Entry, 0, len(p))

		for _, item := range p {
			sub := DecodeEntries(item)
			if sub == nil {
				return nil
			}

			out = append(out, sub...)
		}

		if len(out) == 0 {
			return nil
		}

		return out
	default:
		return nil
	}
}

// DecodeScored coerces a ranked-list payload, preserving scores where the
// payload carries them and zero-filling otherwise.
func DecodeScored(v any) []Scored {
	switch p := v.(type) {
	case []Scored:
		out := make([]Scored, len(p))
		copy(out, p)

		return out
	case Scored:
		return []Scored{p}
	case map[string]any:
		e, ok := entryFromMap(p)
		if !ok {
			if _, scored := p["score"]; !scored {
				return nil
			}
		}

		return []Scored{{Entry: e, Score: mapFloat(p, "score")}}
	case []any:
		out := make([]Scored, 0, len(p))

		for _, item := range p {
			sub := DecodeScored(item)
			if sub == nil {
				return nil
			}

			out = append(out, sub...)
		}

		if len(out) == 0 {
			return nil
		}

		return out
	default:
		entries := DecodeEntries(v)
		if entries == nil {
			return nil
		}

		return WrapScored(entries)
	}
}

// entryFromMap reads the JSON object form of an entry. A map without any
// entry field is not an entry; that keeps meta payloads such as
// window.ready announcements from decoding into garbage.
func entryFromMap(m map[string]any) (Entry, bool) {
	e := Entry{}
	found := false

	if s, ok := m["key"].(string); ok {
		e.Key = s
		found = true
	}

	if s, ok := m["text"].(string); ok {
		e.Text = s
		found = true
	}

	if v, ok := toFloat(m["value"]); ok {
		e.Value = v
		found = true
	}

	if raw, ok := m["embedding"].([]any); ok {
		emb := make([]float64, 0, len(raw))

		for _, item := range raw {
			f, ok := toFloat(item)
			if !ok {
				emb = nil

				break
			}

			emb = append(emb, f)
		}

		if emb != nil {
			e.Embedding = emb
			found = true
		}
	} else if emb, ok := m["embedding"].([]float64); ok {
		e.Embedding = append([]float64(nil), emb...)
		found = true
	}

	return e, found
}

func mapFloat(m map[string]any, key string) float64 {
	f, _ := toFloat(m[key])

	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SortedInputNames returns the input signal names in lexical order. Map
// iteration order is not stable; atoms that scan their inputs use this so
// behavior does not vary between firings.
func SortedInputNames(inputs map[string]signal.Signal) []string {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// GatherEntries finds the first decodable entries payload among the
// invocation's inputs: the trigger signal first, then the remaining inputs
// in lexical name order.
func GatherEntries(rc *atom.RunContext) []Entry {
	if entries := DecodeEntries(rc.Trigger.Value); entries != nil {
		return entries
	}

	for _, name := range SortedInputNames(rc.Inputs) {
		if name == rc.Trigger.Name {
			continue
		}

		if entries := DecodeEntries(rc.Inputs[name].Value); entries != nil {
			return entries
		}
	}

	return nil
}

// GatherScored is GatherEntries for ranked-list payloads. Meta signals
// (window.ready, counters) never decode, so they are skipped naturally.
func GatherScored(rc *atom.RunContext) []Scored {
	if scored := DecodeScored(rc.Trigger.Value); scored != nil {
		return scored
	}

	for _, name := range SortedInputNames(rc.Inputs) {
		if name == rc.Trigger.Name {
			continue
		}

		if scored := DecodeScored(rc.Inputs[name].Value); scored != nil {
			return scored
		}
	}

	return nil
}

// ResolveWindow names the window an atom should read: node config first,
// then the window announced by a window.ready input. The trigger is part
// of the coalesced inputs, so one lookup covers both.
func ResolveWindow(rc *atom.RunContext) string {
	if name := rc.Config.String(ConfigWindow, ""); name != "" {
		return name
	}

	if ready, ok := rc.Input(WindowReady); ok {
		return windowFromSignal(ready)
	}

	return ""
}

func windowFromSignal(sig signal.Signal) string {
	if sig.Name != WindowReady {
		return ""
	}

	if m, ok := sig.Value.(map[string]any); ok {
		if name, ok := m["window"].(string); ok {
			return name
		}
	}

	return ""
}

// WindowEntries reads the resolved window's snapshot and decodes each
// entity into an Entry. Entities that are not entries pass through with
// their numeric value only.
func WindowEntries(rc *atom.RunContext) []Entry {
	name := ResolveWindow(rc)
	if name == "" {
		return nil
	}

	snapshot := rc.Sink.WindowQuery(name)
	if len(snapshot) == 0 {
		return nil
	}

	out := make([]Entry, 0, len(snapshot))

	for _, we := range snapshot {
		out = append(out, entryFromWindow(we))
	}

	return out
}

func entryFromWindow(we sink.Entry) Entry {
	if decoded := DecodeEntries(we.Entity); len(decoded) == 1 {
		e := decoded[0]
		if e.Key == "" {
			e.Key = we.Key
		}

		return e
	}

	e := Entry{Key: we.Key}
	if v, ok := sink.NumericValue(we.Entity); ok {
		e.Value = v
	}

	return e
}

// Announce emits the window.ready signal for a freshly filled window.
func Announce(rc *atom.RunContext, window string, count int) {
	rc.Emit(WindowReady, map[string]any{"window": window, "count": count})
}
