package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/halvard/munin/internal/engine"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	eng *engine.Engine
	db  *index.DB
}

// NewHandler creates a new Handler.
func NewHandler(eng *engine.Engine, db *index.DB) *Handler {
	return &Handler{eng: eng, db: db}
}

// ListEntries handles GET /entries with optional kind filter and pagination.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	kind := q.Get("kind")

	rows, total, err := h.db.ListEntries(limit, offset, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]EntryListItem, len(rows))
	for i, row := range rows {
		items[i] = EntryListItem{
			Key:      row.Key,
			Kind:     row.Kind,
			Title:    row.Title,
			Repo:     row.Repo,
			Location: row.Location,
			Labels:   nonNil(row.Labels),
		}
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: total})
}

// GetEntry handles GET /entry?key=.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	entry, err := h.eng.Entry(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(entry))
}

// Search handles GET /search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.db.Search(q, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	results := make([]SearchHit, len(hits))
	for i, hit := range hits {
		results[i] = SearchHit{Key: hit.Key, Title: hit.Title, Snippet: hit.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Backlinks handles GET /backlinks?target=.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("target is required"))
		return
	}
	sources, err := h.db.Backlinks(target)
	if err != nil {
		writeError(w, err)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Sources: sources})
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Repo == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("repo and title are required"))
		return
	}
	entry, err := h.eng.CreateNote(models.RepoKey(req.Repo), req.Location, req.Title, req.Content, req.Labels)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetail(entry))
}

// UpdateNote handles PUT /notes.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	entry, err := h.eng.UpdateNote(req.Key, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(entry))
}

// CreateLink handles POST /links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Repo == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("repo and target are required"))
		return
	}
	entry, err := h.eng.CreateLink(models.RepoKey(req.Repo), req.Target, req.Title, req.Labels)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetail(entry))
}

// DeleteEntry handles DELETE /entry?key=.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	if err := h.eng.DeleteEntry(key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Changes handles GET /changes.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	sets := h.eng.PendingChanges()
	out := make([]ChangeDTO, len(sets))
	for i, cs := range sets {
		ops := make([]OpDTO, len(cs.Ops))
		for j, op := range cs.Ops {
			ops[j] = opToDTO(op)
		}
		out[i] = ChangeDTO{Repo: string(cs.Repo), Ops: ops, Preview: cs.Preview}
	}
	writeJSON(w, http.StatusOK, ChangesResponse{Changes: out})
}

// Commit handles POST /commit.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("message is required"))
		return
	}
	shas, err := h.eng.Commit(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := CommitResponse{Commits: make(map[string]string, len(shas))}
	for k, v := range shas {
		resp.Commits[string(k)] = v
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reload handles POST /reload, discarding all staged edits.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	problems, err := h.eng.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(problems) > 0 {
		slog.Warn("api: reload finished with problems", slog.Int("count", len(problems)))
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Entries:  len(h.eng.Entries()),
		Problems: len(problems),
	})
}
