// Package registry is the mutex-guarded krystal registry: a single
// canonical_url -> payload map, the merge engine's orchestration across a
// batch of uploaded files, invalidation-grouped read caches, and optional
// snapshot persistence.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/kaisigil/gate/pkg/extractor"
	"github.com/kaisigil/gate/pkg/logicaltime"
	"github.com/kaisigil/gate/pkg/merge"
	"github.com/kaisigil/gate/pkg/payload"
	"github.com/kaisigil/gate/pkg/urlcanon"
	"github.com/kaisigil/gate/pkg/witness"
)

const maxParentStitchDepth = 128

// File is one uploaded artifact: its original name (diagnostic only) and
// raw bytes.
type File struct {
	Name  string
	Bytes []byte
}

// Report summarises one Inhale call.
type Report struct {
	CrystalsTotal    int      `json:"crystals_total"`
	CrystalsFailed   int      `json:"crystals_failed"`
	CrystalsImported int      `json:"crystals_imported"`
	RegistryURLs     int      `json:"registry_urls"`
	LatestPulse      *int64   `json:"latest_pulse,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// Entry is one registry row in a State snapshot: the authoritative
// (url, payload) pair plus the computed projections of the payload's
// well-known fields, mirroring the entry's top-level accessors in the
// data model (§3) so a client never has to reach into payload itself for
// them.
type Entry struct {
	URL     string          `json:"url"`
	Payload payload.Payload `json:"payload"`

	Pulse     int64 `json:"pulse"`
	Beat      int64 `json:"beat"`
	StepIndex int64 `json:"stepIndex"`

	ChakraDay    *string `json:"chakraDay"`
	KaiSignature *string `json:"kaiSignature"`
	OriginURL    *string `json:"originUrl"`
	ParentURL    *string `json:"parentUrl"`
	UserPhiKey   *string `json:"userPhiKey"`
	PhiKey       *string `json:"phiKey"`
	Phikey       *string `json:"phikey"`
	ID           *string `json:"id"`
}

// buildEntry projects url/p into an Entry, per §3's computed-field list.
func buildEntry(url string, p payload.Payload) Entry {
	t := tupleOf(p)
	e := Entry{
		URL:          url,
		Payload:      p,
		Pulse:        t.Pulse,
		Beat:         t.Beat,
		StepIndex:    t.StepIndex,
		ChakraDay:    p.GetStringPtr(payload.FieldChakraDay),
		KaiSignature: p.GetStringPtr(payload.FieldKaiSignature),
		OriginURL:    p.GetStringPtr(payload.FieldOriginURL),
		ParentURL:    p.GetStringPtr(payload.FieldParentURL),
		UserPhiKey:   p.GetStringPtr(payload.FieldUserPhiKey),
		PhiKey:       p.GetStringPtr(payload.FieldPhiKey),
		Phikey:       p.GetStringPtr(payload.FieldPhikey),
	}
	if id := p.ID(); id != "" {
		e.ID = &id
	}
	return e
}

// State is the read-view snapshot returned by GetState: the registry as an
// ordered list of entries (logical-time descending, URL ascending — the
// same order as URLs), plus the derived projections a client needs without
// recomputing them. Mirrors the SigilState wire schema of §3.
type State struct {
	Spec      string            `json:"spec"`
	TotalURLs int               `json:"total_urls"`
	Latest    logicaltime.Tuple `json:"latest"`
	StateSeal string            `json:"state_seal"`
	Registry  []Entry           `json:"registry"`
	URLs      []string          `json:"urls"`
}

// SpecVersion is the persisted-format and state-snapshot version tag.
const SpecVersion = "KKS-1.0"

// Store is the registry: a mutex-guarded map plus invalidation-grouped
// caches. The zero value is not usable; construct with New.
type Store struct {
	mu sync.RWMutex

	baseOrigin string
	keep       int
	backend    Backend
	log        *slog.Logger

	registry map[string]payload.Payload

	cacheValid bool
	cacheURLs  []string
	cacheSeal  string
	cacheState *State
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithKeep sets KAI_REGISTRY_KEEP: prune to the newest N entries (by
// ordered list) after every Inhale. 0 disables pruning.
func WithKeep(n int) Option {
	return func(s *Store) { s.keep = n }
}

// WithBackend enables persistence through backend. A nil backend (the
// default) disables persistence entirely.
func WithBackend(b Backend) Option {
	return func(s *Store) { s.backend = b }
}

// New constructs an empty Store and, if a backend was supplied, attempts
// to load a prior snapshot from it. Load failures are logged and leave the
// registry empty — persistence is advisory, never fatal.
func New(baseOrigin string, opts ...Option) *Store {
	s := &Store{
		baseOrigin: baseOrigin,
		registry:   make(map[string]payload.Payload),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.backend != nil {
		if err := s.load(context.Background()); err != nil && !errors.Is(err, ErrNoSnapshot) {
			s.log.Warn("registry: snapshot load failed, starting empty", "error", err)
		}
	}
	return s
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	var snap struct {
		Spec     string                     `json:"spec"`
		Registry map[string]payload.Payload `json:"registry"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("registry: snapshot decode failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for url, p := range snap.Registry {
		if url == "" || p == nil {
			continue // malformed entry, silently dropped per the persistence contract
		}
		s.registry[url] = p
	}
	return nil
}

// Inhale runs the full batch-ingestion pipeline of §4.5 over files,
// returning a report. Persistence, if enabled, is attempted afterward and
// its failures are swallowed.
func (s *Store) Inhale(files []File) Report {
	s.mu.Lock()
	report := s.inhaleLocked(files)
	s.invalidateLocked()
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.save(context.Background()); err != nil {
			s.log.Warn("registry: snapshot save failed", "error", err)
		}
	}
	return report
}

func (s *Store) inhaleLocked(files []File) Report {
	var report Report

	for _, f := range files {
		if !utf8.Valid(f.Bytes) {
			report.CrystalsFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: not valid UTF-8", f.Name))
			continue
		}
		var doc interface{}
		if err := json.Unmarshal(f.Bytes, &doc); err != nil {
			report.CrystalsFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}

		hits := extractor.ExtractAll(doc, s.baseOrigin)
		report.CrystalsTotal += len(hits)

		for _, hit := range hits {
			if s.processHitLocked(hit) {
				report.CrystalsImported++
			}
		}
	}

	if s.keep > 0 {
		s.pruneLocked(s.keep)
	}

	report.RegistryURLs = len(s.registry)
	if latest := s.latestTupleLocked(); latest != nil {
		p := latest.Pulse
		report.LatestPulse = &p
	}
	return report
}

// processHitLocked runs steps 1-7 of §4.5 for a single extractor hit and
// reports whether the leaf upsert changed the registry.
func (s *Store) processHitLocked(hit extractor.Hit) bool {
	if hit.CanonicalURL == "" {
		return false
	}

	ctx := witness.Derive(hit.CanonicalURL, s.baseOrigin)
	p := witness.MergeDerivedContext(hit.Payload, ctx)
	p = s.canonicalizeTopologyLocked(p)

	changed := s.upsertLocked(hit.CanonicalURL, p)

	if len(ctx.Chain) > 0 {
		s.synthesizeWitnessEdgesLocked(ctx)
	}
	s.stitchParentChainLocked(hit.CanonicalURL)

	return changed
}

// canonicalizeTopologyLocked re-canonicalises any explicit originUrl or
// parentUrl already present on p (step 4 of batch ingestion): these arrive
// as raw strings from the source payload, not yet run through the URL
// canonicaliser.
func (s *Store) canonicalizeTopologyLocked(p payload.Payload) payload.Payload {
	out := p
	cloned := false
	for _, field := range []string{payload.FieldOriginURL, payload.FieldParentURL} {
		str, ok := out[field].(string)
		if !ok || str == "" {
			continue
		}
		canon := urlcanon.Canonicalize(str, s.baseOrigin)
		if canon == "" || canon == str {
			continue
		}
		if !cloned {
			out = out.Clone()
			cloned = true
		}
		out[field] = canon
	}
	return out
}

// synthesizeWitnessEdgesLocked ensures every URL in a witness chain exists
// in the registry, decoding its embedded token where possible, per step 6.
// Intermediate entries soft-fill parentUrl from their predecessor only —
// the leaf's own originUrl/parentUrl fill already happened via
// MergeDerivedContext, so chain edges here never carry originUrl.
func (s *Store) synthesizeWitnessEdgesLocked(ctx witness.Context) {
	for _, edge := range witness.ChainEdges(ctx) {
		p, ok := extractor.DecodeCanonicalURL(edge.URL)
		if !ok {
			continue
		}
		if edge.ParentURL != "" && p.FieldMissing(payload.FieldParentURL) {
			p = p.Clone()
			p[payload.FieldParentURL] = edge.ParentURL
		}
		s.upsertLocked(edge.URL, p)
	}
}

// stitchParentChainLocked walks a leaf's explicit topology links —
// originUrl (single hop) and successive parentUrl links — inserting any
// reachable ancestor whose token decodes, up to maxParentStitchDepth hops,
// stopping at a cycle or a hop that fails to decode.
func (s *Store) stitchParentChainLocked(leafURL string) {
	visited := map[string]bool{leafURL: true}

	leaf, ok := s.registry[leafURL]
	if !ok {
		return
	}
	if origin := leaf.GetString(payload.FieldOriginURL); origin != "" && !visited[origin] {
		visited[origin] = true
		s.ensureAncestorLocked(origin)
	}

	current := leafURL
	for depth := 0; depth < maxParentStitchDepth; depth++ {
		cur, ok := s.registry[current]
		if !ok {
			return
		}
		parent := cur.GetString(payload.FieldParentURL)
		if parent == "" || visited[parent] {
			return
		}
		visited[parent] = true
		if !s.ensureAncestorLocked(parent) {
			return
		}
		current = parent
	}
}

func (s *Store) ensureAncestorLocked(url string) bool {
	if _, ok := s.registry[url]; ok {
		return true
	}
	p, ok := extractor.DecodeCanonicalURL(url)
	if !ok {
		return false
	}
	s.upsertLocked(url, p)
	return true
}

// upsertLocked inserts or merges p at url, returning whether the stored
// representation changed.
func (s *Store) upsertLocked(url string, p payload.Payload) bool {
	prev, ok := s.registry[url]
	if !ok {
		s.registry[url] = p
		return true
	}
	merged := merge.Merge(prev, p)
	if payload.Equal(prev, merged) {
		return false
	}
	s.registry[url] = merged
	return true
}

// pruneLocked keeps only the newest n entries by the ordered (logical-time
// descending, URL ascending) list.
func (s *Store) pruneLocked(n int) {
	if len(s.registry) <= n {
		return
	}
	ordered := orderedURLs(s.registry)
	kept := make(map[string]payload.Payload, n)
	for _, u := range ordered[:n] {
		kept[u] = s.registry[u]
	}
	s.registry = kept
}

func (s *Store) latestTupleLocked() *logicaltime.Tuple {
	if len(s.registry) == 0 {
		return nil
	}
	var latest logicaltime.Tuple
	first := true
	for _, p := range s.registry {
		t := tupleOf(p)
		if first {
			latest = t
			first = false
			continue
		}
		latest = latest.Max(t)
	}
	return &latest
}

func tupleOf(p payload.Payload) logicaltime.Tuple {
	pulse, _ := p.Get(payload.FieldPulse)
	beat, _ := p.Get(payload.FieldBeat)
	step, _ := p.Get(payload.FieldStepIndex)
	return logicaltime.FromFields(pulse, beat, step)
}

// orderedURLs sorts registry entries by logical-time tuple descending,
// then URL ascending on ties, per §4.5's ordered(registry).
func orderedURLs(registry map[string]payload.Payload) []string {
	urls := make([]string, 0, len(registry))
	for u := range registry {
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool {
		ti, tj := tupleOf(registry[urls[i]]), tupleOf(registry[urls[j]])
		if !ti.Equal(tj) {
			return tj.Less(ti) // descending
		}
		return urls[i] < urls[j]
	})
	return urls
}

