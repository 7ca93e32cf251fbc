package api

import (
	"time"

	"github.com/halvard/munin/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Repo     string   `json:"repo"`
	Location string   `json:"location"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Labels   []string `json:"labels,omitempty"`
}

// UpdateNoteRequest is the request body for replacing a note's text.
type UpdateNoteRequest struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// CreateLinkRequest is the request body for pinning a standalone link.
type CreateLinkRequest struct {
	Repo   string   `json:"repo"`
	Target string   `json:"target"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// CommitRequest is the request body for committing staged edits.
type CommitRequest struct {
	Message string `json:"message"`
}

// EntryListItem is a lightweight item in a list response.
type EntryListItem struct {
	Key      string   `json:"key"`
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Repo     string   `json:"repo,omitempty"`
	Location string   `json:"location,omitempty"`
	Labels   []string `json:"labels"`
}

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries"`
	Total   int             `json:"total"`
}

// EntryDetail is the full representation of one entry. Fields not relevant
// to the entry's kind are omitted.
type EntryDetail struct {
	Key          string    `json:"key"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Labels       []string  `json:"labels"`
	Repo         string    `json:"repo,omitempty"`
	Location     string    `json:"location,omitempty"`
	Created      time.Time `json:"created,omitzero"`
	Updated      time.Time `json:"updated,omitzero"`
	Content      string    `json:"content,omitempty"`
	HTML         string    `json:"html,omitempty"`
	LinkTargets  []string  `json:"link_targets,omitempty"`
	RawURL       string    `json:"raw_url,omitempty"`
	Target       string    `json:"target,omitempty"`
	Standalone   bool      `json:"standalone,omitempty"`
	ReferencedBy []string  `json:"referenced_by,omitempty"`
}

// SearchHit is a single search result.
type SearchHit struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// BacklinksResponse lists the note keys referencing a target.
type BacklinksResponse struct {
	Sources []string `json:"sources"`
}

// OpDTO is one staged git operation.
type OpDTO struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// ChangeDTO describes one repo's pending edits.
type ChangeDTO struct {
	Repo    string  `json:"repo"`
	Ops     []OpDTO `json:"ops"`
	Preview string  `json:"preview"`
}

// ChangesResponse wraps the pending change sets.
type ChangesResponse struct {
	Changes []ChangeDTO `json:"changes"`
}

// CommitResponse maps each committed repo to its new commit sha.
type CommitResponse struct {
	Commits map[string]string `json:"commits"`
}

// ReloadResponse reports the outcome of a reload.
type ReloadResponse struct {
	Entries  int `json:"entries"`
	Problems int `json:"problems"`
}

func toDetail(e *models.Entry) EntryDetail {
	d := EntryDetail{
		Key:    e.Key,
		Kind:   e.Content.Kind().String(),
		Title:  e.Title,
		Labels: nonNil(e.Labels),
	}
	switch c := e.Content.(type) {
	case *models.NoteContent:
		d.Repo = string(c.Repo.Key())
		d.Location = c.Location
		d.Created = c.TimeCreated
		d.Updated = c.TimeUpdated
		d.Content = c.Text
		d.HTML = c.HTML
		d.LinkTargets = c.LinkTargets
	case *models.DocumentContent:
		d.Repo = string(c.Repo.Key())
		d.Location = c.Location
		d.Created = c.TimeCreated
		d.Updated = c.TimeUpdated
		d.RawURL = c.RawURL
	case *models.LinkContent:
		d.Target = c.Target
		d.Standalone = c.Standalone
		for _, ref := range c.RefEntries {
			d.ReferencedBy = append(d.ReferencedBy, ref.Key)
		}
	}
	return d
}

func opToDTO(op models.GitOp) OpDTO {
	switch o := op.(type) {
	case models.WriteOp:
		return OpDTO{Type: "write", Path: o.Path}
	case models.DeleteOp:
		return OpDTO{Type: "delete", Path: o.Path}
	case models.MoveOp:
		return OpDTO{Type: "move", From: o.From, To: o.To}
	}
	return OpDTO{}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
