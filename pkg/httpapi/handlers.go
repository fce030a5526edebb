package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kaisigil/gate/pkg/registry"
)

const (
	minBytesPerFile     = 1024
	maxBytesPerFile     = 100 * 1024 * 1024
	defaultBytesPerFile = 10 * 1024 * 1024
)

// Service is the /sigils HTTP adapter over a *registry.Store: multipart
// ingestion, ETag-revalidated reads, and the paged/exhale views of §4.7.
type Service struct {
	store *registry.Store

	inhaleSem          *semaphore.Weighted
	maxInlineStateURLs int
	maxInlineURLs      int
}

// NewService wires store into a Service. maxConcurrentInhales sizes the
// ingress semaphore (KAI_MAX_CONCURRENT_INHALES); maxInlineStateURLs and
// maxInlineURLs are the suppression thresholds for /inhale's inline
// state/urls fields.
func NewService(store *registry.Store, maxConcurrentInhales, maxInlineStateURLs, maxInlineURLs int) *Service {
	return &Service{
		store:              store,
		inhaleSem:          semaphore.NewWeighted(int64(maxConcurrentInhales)),
		maxInlineStateURLs: maxInlineStateURLs,
		maxInlineURLs:      maxInlineURLs,
	}
}

// Routes registers the service's handlers on mux under prefix (e.g.
// "/sigils").
func (s *Service) Routes(mux *http.ServeMux, prefix string) {
	mux.HandleFunc(prefix+"/inhale", s.handleInhale)
	mux.HandleFunc(prefix+"/seal", s.handleSeal)
	mux.HandleFunc(prefix+"/state", s.handleState)
	mux.HandleFunc(prefix+"/urls", s.handleURLs)
	mux.HandleFunc(prefix+"/exhale", s.handleExhale)
}

// inhaleResponse is the /inhale envelope. On success status is "ok"; if any
// file failed or was skipped, status is "error" and Errors is populated —
// per spec.md §6, errors from /inhale follow the same envelope as success.
type inhaleResponse struct {
	Status           string          `json:"status"`
	FilesReceived    int             `json:"files_received"`
	CrystalsTotal    int             `json:"crystals_total"`
	CrystalsFailed   int             `json:"crystals_failed"`
	CrystalsImported int             `json:"crystals_imported"`
	RegistryURLs     int             `json:"registry_urls"`
	LatestPulse      *int64          `json:"latest_pulse,omitempty"`
	Errors           []string        `json:"errors,omitempty"`
	State            *registry.State `json:"state,omitempty"`
	URLs             []string        `json:"urls,omitempty"`
}

func (s *Service) handleInhale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	maxBytes, err := parseMaxBytesPerFile(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		WriteBadRequest(w, "expected multipart/form-data body")
		return
	}

	var (
		files      []registry.File
		softErrors []string
	)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			WriteBadRequest(w, fmt.Sprintf("malformed multipart body: %v", err))
			return
		}

		limited := http.MaxBytesReader(w, part, maxBytes+1)
		data, readErr := io.ReadAll(limited)
		part.Close()
		if readErr != nil {
			name := part.FileName()
			if name == "" {
				name = part.FormName()
			}
			softErrors = append(softErrors, fmt.Sprintf("%s: exceeds max_bytes_per_file (%d), skipped", name, maxBytes))
			continue
		}
		if len(data) == 0 {
			name := part.FileName()
			if name == "" {
				name = part.FormName()
			}
			softErrors = append(softErrors, fmt.Sprintf("%s: empty file, skipped", name))
			continue
		}

		name := part.FileName()
		if name == "" {
			name = part.FormName()
		}
		files = append(files, registry.File{Name: name, Bytes: data})
	}

	if len(files) == 0 {
		WriteBadRequest(w, "no ingestible files in request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	if err := s.inhaleSem.Acquire(ctx, 1); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", "ingress semaphore wait timed out")
		return
	}
	defer s.inhaleSem.Release(1)

	report := s.store.Inhale(files)

	resp := inhaleResponse{
		Status:           "ok",
		FilesReceived:    len(files),
		CrystalsTotal:    report.CrystalsTotal,
		CrystalsFailed:   report.CrystalsFailed,
		CrystalsImported: report.CrystalsImported,
		RegistryURLs:     report.RegistryURLs,
		LatestPulse:      report.LatestPulse,
		Errors:           append(softErrors, report.Errors...),
	}
	if len(resp.Errors) > 0 {
		resp.Status = "error"
	}

	includeState, includeURLs, err := parseInhaleIncludeFlags(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if !includeState {
		// omitted by request, not by size threshold
	} else if report.RegistryURLs > s.maxInlineStateURLs {
		resp.Errors = append(resp.Errors, fmt.Sprintf("state omitted: registry_urls (%d) exceeds KAI_MAX_INLINE_STATE_URLS (%d)", report.RegistryURLs, s.maxInlineStateURLs))
	} else {
		state := s.store.GetState()
		resp.State = &state
	}
	if !includeURLs {
		// omitted by request, not by size threshold
	} else if report.RegistryURLs > s.maxInlineURLs {
		resp.Errors = append(resp.Errors, fmt.Sprintf("urls omitted: registry_urls (%d) exceeds KAI_MAX_INLINE_URLS (%d)", report.RegistryURLs, s.maxInlineURLs))
	} else {
		resp.URLs = s.store.ExhaleURLs()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// parseInhaleIncludeFlags parses the include_state/include_urls query
// params, both defaulting to true.
func parseInhaleIncludeFlags(r *http.Request) (includeState, includeURLs bool, err error) {
	includeState, err = parseBoolQuery(r, "include_state", true)
	if err != nil {
		return false, false, err
	}
	includeURLs, err = parseBoolQuery(r, "include_urls", true)
	if err != nil {
		return false, false, err
	}
	return includeState, includeURLs, nil
}

func parseBoolQuery(r *http.Request, key string, def bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

func parseMaxBytesPerFile(r *http.Request) (int64, error) {
	q := r.URL.Query().Get("max_bytes_per_file")
	if q == "" {
		return defaultBytesPerFile, nil
	}
	n, err := strconv.ParseInt(q, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("max_bytes_per_file must be an integer")
	}
	if n < minBytesPerFile || n > maxBytesPerFile {
		return 0, fmt.Errorf("max_bytes_per_file must be in [%d, %d]", minBytesPerFile, maxBytesPerFile)
	}
	return n, nil
}

func (s *Service) handleSeal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	seal := s.store.GetSeal()
	if revalidate(w, r, seal) {
		return
	}
	writeJSONCached(w, seal, map[string]string{"seal": seal})
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	state := s.store.GetState()
	if revalidate(w, r, state.StateSeal) {
		return
	}
	writeJSONCached(w, state.StateSeal, state)
}

func (s *Service) handleURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	offset, limit, err := parsePaging(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	seal := s.store.GetSeal()
	// 304 is only offered for the first page: later pages would otherwise
	// 304 against a seal that describes the whole list, not this slice.
	if offset == 0 && revalidate(w, r, seal) {
		return
	}

	page, total := s.store.ExhaleURLsPage(offset, limit)
	body := map[string]interface{}{
		"status":     "ok",
		"state_seal": seal,
		"urls":       page,
		"total":      total,
		"offset":     offset,
		"limit":      limit,
	}
	if offset == 0 {
		writeJSONCached(w, seal, body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func parsePaging(r *http.Request) (offset, limit int, err error) {
	offset = 0
	limit = 1000
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

func (s *Service) handleExhale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "urls":
		seal := s.store.GetSeal()
		if revalidate(w, r, seal) {
			return
		}
		writeJSONCached(w, seal, map[string]interface{}{"status": "ok", "mode": "urls", "urls": s.store.ExhaleURLs()})
	case "state":
		state := s.store.GetState()
		if revalidate(w, r, state.StateSeal) {
			return
		}
		writeJSONCached(w, state.StateSeal, map[string]interface{}{"status": "ok", "mode": "state", "state": state})
	default:
		WriteBadRequest(w, "mode must be \"urls\" or \"state\"")
	}
}

// revalidate writes a 304 and returns true if the request's If-None-Match
// matches etag exactly (weak/strong distinction is not modeled — the gate
// always emits a strong-form ETag).
func revalidate(w http.ResponseWriter, r *http.Request, etag string) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == quote(etag) {
		w.Header().Set("ETag", quote(etag))
		w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func writeJSONCached(w http.ResponseWriter, etag string, body interface{}) {
	w.Header().Set("ETag", quote(etag))
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func quote(s string) string {
	return `"` + s + `"`
}
