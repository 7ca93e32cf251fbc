package reconcile

import (
	"errors"
	"log/slog"
	"time"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/metadata"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/pathcodec"
	"github.com/halvard/munin/internal/render"
)

// FileEntries derives Note and Document entries for one repo from its
// loaded FileMap.
//
// Sidecar handling follows three cases: a parseable sidecar backs the entry
// directly; an unfetchable sidecar excludes the path entirely (overwriting
// metadata we could not read would lose data); an absent or malformed
// sidecar is replaced by a synthesized one, staged into the edit map so the
// next commit persists it.
//
// Returned errors are data-quality reports (fetch/parse); derivation itself
// never fails.
func FileEntries(repo models.Repo, files, edit *models.FileMap, now func() time.Time, logger *slog.Logger) ([]*models.Entry, []error) {
	var (
		entries []*models.Entry
		errs    []error
	)

	for _, path := range files.Paths() {
		if metadata.IsReserved(path) {
			continue
		}

		f, _ := files.Get(path)
		if err := f.FetchErr(); err != nil {
			errs = append(errs, &apperr.FetchError{Path: path, Err: err})
			logger.Warn("load: content unavailable, entry excluded",
				slog.String("repo", string(repo.Key())),
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		kind := pathcodec.Classify(path)
		if kind == models.KindLink {
			// Bookmark placeholder files carry no content; the link
			// registry is the source of truth for links.
			logger.Debug("load: skipping link placeholder", slog.String("path", path))
			continue
		}

		md, excluded, sidecarErrs := sidecar(repo, files, edit, path, now, logger)
		errs = append(errs, sidecarErrs...)
		if excluded {
			continue
		}

		location, filename := pathcodec.SplitLocationAndFilename(path)
		title := pathcodec.FilenameToTitle(filename)
		ext := pathcodec.Extension(path)

		var content models.Content
		switch kind {
		case models.KindNote:
			text, ok := f.Content()
			if !ok {
				errs = append(errs, &apperr.FetchError{Path: path, Err: errors.New("note content not fetched")})
				logger.Warn("load: note without content, entry excluded",
					slog.String("repo", string(repo.Key())),
					slog.String("path", path))
				continue
			}
			res, err := render.Render([]byte(text))
			if err != nil {
				logger.Warn("load: render failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				res = &render.Result{}
			}
			content = &models.NoteContent{
				Repo:        repo,
				Location:    location,
				Extension:   ext,
				TimeCreated: md.TimeCreated,
				TimeUpdated: md.TimeUpdated,
				Text:        text,
				HTML:        res.HTML,
				LinkTargets: res.Links,
			}
		case models.KindDocument:
			content = &models.DocumentContent{
				Repo:        repo,
				Location:    location,
				Extension:   ext,
				TimeCreated: md.TimeCreated,
				TimeUpdated: md.TimeUpdated,
				RawURL:      f.RawURL,
			}
		}

		entries = append(entries, &models.Entry{
			Title:   title,
			Labels:  md.Labels,
			Content: content,
			Key:     models.FileEntryKey(repo.Key(), path),
		})
	}

	return entries, errs
}

// sidecar resolves the MetaData for a content path. excluded is true only
// when the sidecar exists but could not be fetched.
func sidecar(repo models.Repo, files, edit *models.FileMap, path string, now func() time.Time, logger *slog.Logger) (md models.MetaData, excluded bool, errs []error) {
	sp := metadata.SidecarPath(path)

	sf, ok := files.Get(sp)
	if ok {
		if err := sf.FetchErr(); err != nil {
			logger.Warn("load: sidecar unavailable, entry excluded",
				slog.String("repo", string(repo.Key())),
				slog.String("path", sp),
				slog.String("error", err.Error()))
			return models.MetaData{}, true, []error{&apperr.FetchError{Path: sp, Err: err}}
		}
		if text, has := sf.Content(); has {
			parsed, err := metadata.ParseMetaData(text)
			if err == nil {
				return parsed, false, nil
			}
			errs = append(errs, &apperr.ParseError{Path: sp, Err: err})
			logger.Warn("load: sidecar malformed, synthesizing",
				slog.String("path", sp),
				slog.String("error", err.Error()))
		}
	}

	md = metadata.New(now(), nil)
	if staged, err := metadata.MarshalMetaData(md); err == nil {
		edit.SetContent(sp, staged)
	} else {
		logger.Error("load: could not stage synthesized sidecar",
			slog.String("path", sp),
			slog.String("error", err.Error()))
	}
	return md, false, errs
}

// RegistryLinks builds Link entries from the repo's persisted registry.
// An unfetchable registry is reported as an error; the caller must then
// refrain from re-staging the registry for this repo.
func RegistryLinks(repo models.Repo, files *models.FileMap, logger *slog.Logger) ([]*models.Entry, []error) {
	f, ok := files.Get(metadata.RegistryPath)
	if !ok {
		return nil, nil
	}
	if err := f.FetchErr(); err != nil {
		logger.Warn("load: link registry unavailable",
			slog.String("repo", string(repo.Key())),
			slog.String("error", err.Error()))
		return nil, []error{&apperr.FetchError{Path: metadata.RegistryPath, Err: err}}
	}
	text, has := f.Content()
	if !has {
		return nil, []error{&apperr.FetchError{Path: metadata.RegistryPath, Err: errors.New("registry not fetched")}}
	}

	records, err := metadata.ParseRegistry(text)
	if err != nil {
		logger.Warn("load: link registry malformed, treated as empty",
			slog.String("repo", string(repo.Key())),
			slog.String("error", err.Error()))
		return nil, []error{&apperr.ParseError{Path: metadata.RegistryPath, Err: err}}
	}

	var out []*models.Entry
	for _, r := range records {
		title := r.Title
		if title == "" {
			title = r.Target
		}
		out = append(out, &models.Entry{
			Title:  title,
			Labels: append([]string(nil), r.OwnLabels...),
			Key:    r.Target,
			Content: &models.LinkContent{
				Target:     r.Target,
				Standalone: r.Standalone,
				OwnerRepo:  repo,
				OwnLabels:  append([]string(nil), r.OwnLabels...),
			},
		})
	}
	return out, nil
}

// RegistryRecords returns the records a repo's registry persists: links it
// standalone-owns plus links whose back-references all come from this repo
// alone. Records are ordered by target so an unchanged registry serializes
// byte-identically and produces no diff.
func RegistryRecords(repo models.Repo, links []*models.Entry) []models.LinkRecord {
	var out []models.LinkRecord
	for _, e := range links {
		lc, ok := e.Content.(*models.LinkContent)
		if !ok {
			continue
		}
		var owned bool
		if lc.Standalone {
			owned = lc.OwnerRepo.Key() == repo.Key()
		} else {
			owned = len(lc.RefRepos) == 1 && lc.RefRepos[0].Key() == repo.Key()
		}
		if !owned {
			continue
		}
		out = append(out, models.LinkRecord{
			Title:      e.Title,
			Target:     lc.Target,
			OwnLabels:  lc.OwnLabels,
			Standalone: lc.Standalone,
		})
	}
	sortRecords(out)
	return out
}
