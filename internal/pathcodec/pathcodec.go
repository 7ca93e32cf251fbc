// Package pathcodec maps between human-readable entry titles and
// storage-safe filenames, and classifies repo paths by content kind.
//
// Titles may contain the path separator, so it is escaped into a
// private-use-area stand-in before the title becomes a filename. A title
// dot gets the same treatment when no extension is appended, otherwise the
// decoder's extension strip could eat title text. The stand-ins themselves
// are escaped first so that any string, including one that already contains
// stand-ins, round-trips exactly.
package pathcodec

import (
	"strings"

	"github.com/halvard/munin/internal/models"
)

const (
	// sepMark stands in for a literal '/' inside a title.
	sepMark = '\uE000'
	// escMark prefixes a stand-in character that appeared literally in the
	// title.
	escMark = '\uE001'
	// dotMark stands in for a literal '.' when the filename carries no
	// extension.
	dotMark = '\uE002'

	// ExtNote is the markdown extension classifying a path as a note.
	ExtNote = "md"
	// ExtLink is the reserved extension of a bookmark placeholder file.
	ExtLink = "link"
)

// Classify reports the content kind for a repo path, by extension.
// Unrecognized or missing extensions are documents.
func Classify(path string) models.Kind {
	switch strings.ToLower(Extension(path)) {
	case ExtNote:
		return models.KindNote
	case ExtLink:
		return models.KindLink
	}
	return models.KindDocument
}

// Extension returns the final extension of path without the dot, or "".
func Extension(path string) string {
	_, filename := SplitLocationAndFilename(path)
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i+1:]
	}
	return ""
}

// TitleToFilename encodes title into a path-safe filename, appending
// extension (without dot) if non-empty.
//
// The escape passes run in a fixed order: literal escape marks first, then
// the other literal stand-ins, then the characters the stand-ins replace.
// Reversing this order would make stand-ins of stand-ins ambiguous.
func TitleToFilename(title, extension string) string {
	s := strings.ReplaceAll(title, string(escMark), string(escMark)+string(escMark))
	s = strings.ReplaceAll(s, string(sepMark), string(escMark)+string(sepMark))
	s = strings.ReplaceAll(s, string(dotMark), string(escMark)+string(dotMark))
	s = strings.ReplaceAll(s, "/", string(sepMark))
	if extension == "" {
		// Without an appended extension, a literal title dot would look
		// like an extension separator to the decoder.
		return strings.ReplaceAll(s, ".", string(dotMark))
	}
	return s + "." + extension
}

// FilenameToTitle strips the final extension and reverses the escaping.
//
// Decoding scans left to right with a one-character lookahead after each
// escape mark. Escape sequences can repeat without bound, so a fixed-width
// backward match cannot decode them.
func FilenameToTitle(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		filename = filename[:i]
	}
	runes := []rune(filename)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case escMark:
			if i+1 < len(runes) {
				b.WriteRune(runes[i+1])
				i++
			}
		case sepMark:
			b.WriteByte('/')
		case dotMark:
			b.WriteByte('.')
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// SplitLocationAndFilename splits path at the last separator. The location
// is empty for root-level paths.
func SplitLocationAndFilename(path string) (location, filename string) {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// Join recombines a location and filename into a repo path.
func Join(location, filename string) string {
	if location == "" {
		return filename
	}
	return location + "/" + filename
}
