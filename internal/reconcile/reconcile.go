// Package reconcile derives the canonical, stably-identified entry set from
// a repo's file map, its sidecar metadata, and the persisted link registry.
package reconcile

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
)

// Reconcile rebuilds the link graph from the existing link entries plus the
// freshly derived file entries, then returns the surviving link entries and
// the full canonical sorted list.
//
// Existing link entries are mutated in place, never cloned: callers may
// hold references across a pass and relocate an entry by its key
// afterwards. During the pass this function is the sole owner of the link
// set; results are exposed only once the pass completes.
func Reconcile(fileEntries, existingLinks []*models.Entry, logger *slog.Logger) (links, sorted []*models.Entry) {
	lookup := make(map[string]*models.Entry, len(existingLinks))
	inResult := make(map[*models.Entry]bool)

	// Reset every known link to its own, non-inherited state. Standalone
	// links survive unconditionally, in first-encounter order.
	for _, e := range existingLinks {
		lc, ok := e.Content.(*models.LinkContent)
		if !ok {
			logger.Error("reconcile: non-link entry in link set", slog.String("key", e.Key))
			continue
		}
		if _, dup := lookup[lc.Target]; dup {
			// Unique targets are an invariant; duplicates can only come
			// from externally edited registry data.
			logger.Warn("reconcile: duplicate link target dropped", slog.String("target", lc.Target))
			continue
		}
		lc.RefEntries = nil
		lc.RefRepos = nil
		lc.RefLocations = nil
		e.Labels = mergeLabels(nil, lc.OwnLabels)
		lookup[lc.Target] = e
		if lc.Standalone {
			links = append(links, e)
			inResult[e] = true
		}
	}

	// Fold every note's outgoing targets into the graph. A link enters the
	// result list exactly once: when first referenced (or already, if
	// standalone). Non-standalone links that end the pass with zero
	// references are simply never emitted.
	for _, fe := range fileEntries {
		nc, ok := fe.Content.(*models.NoteContent)
		if !ok {
			continue
		}
		for _, target := range nc.LinkTargets {
			le, exists := lookup[target]
			if !exists {
				le = &models.Entry{
					Title:   target,
					Key:     target,
					Content: &models.LinkContent{Target: target},
				}
				lookup[target] = le
			}
			lc := le.Content.(*models.LinkContent)
			lc.RefEntries = append(lc.RefEntries, fe)
			lc.RefRepos = mergeRepo(lc.RefRepos, nc.Repo)
			lc.RefLocations = mergeString(lc.RefLocations, nc.Location)
			le.Labels = mergeLabels(le.Labels, fe.Labels)
			if !inResult[le] {
				links = append(links, le)
				inResult[le] = true
			}
		}
	}

	return links, Sort(fileEntries, links)
}

// Sort concatenates file and link entries into the canonical order, kind
// rank (note, document, link) then case-insensitive title, and assigns
// each entry its index. This order, not insertion order, is the contract
// every consumer observes.
func Sort(fileEntries, links []*models.Entry) []*models.Entry {
	out := make([]*models.Entry, 0, len(fileEntries)+len(links))
	out = append(out, fileEntries...)
	out = append(out, links...)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].Content.Kind(), out[j].Content.Kind()
		if ki != kj {
			return ki < kj
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	for i, e := range out {
		e.Idx = i
	}
	return out
}

// IndexOf locates key in a reconciled entry list. A miss for a key that was
// part of the pass indicates a logic defect, not bad data, and is surfaced
// as an invariant violation.
func IndexOf(entries []*models.Entry, key string) (int, error) {
	for i, e := range entries {
		if e.Key == key {
			return i, nil
		}
	}
	return 0, apperr.Invariant("entry %q not found after reconciliation", key)
}

// mergeLabels unions two label lists, lowercased, deduplicated, sorted.
func mergeLabels(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	out := make([]string, 0, len(dst)+len(src))
	add := func(labels []string) {
		for _, l := range labels {
			n := strings.ToLower(strings.TrimSpace(l))
			if n == "" {
				continue
			}
			if _, dup := seen[n]; !dup {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	add(dst)
	add(src)
	sort.Strings(out)
	return out
}

// mergeRepo appends repo if its key is not yet present, keeping insertion
// order.
func mergeRepo(repos []models.Repo, repo models.Repo) []models.Repo {
	for _, r := range repos {
		if r.Key() == repo.Key() {
			return repos
		}
	}
	return append(repos, repo)
}

// mergeString appends s if not yet present, keeping insertion order.
func mergeString(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func sortRecords(records []models.LinkRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Target < records[j].Target })
}
