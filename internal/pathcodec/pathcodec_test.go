package pathcodec

import (
	"strings"
	"testing"

	"github.com/halvard/munin/internal/models"
)

func TestTitleRoundTrip(t *testing.T) {
	titles := []string{
		"",
		"plain title",
		"with/slash",
		"trailing/",
		"/leading",
		"multi///slash",
		"back\\slash",
		"dots.in.title",
		".hidden",
		"trailing.",
		"\uE000",
		"\uE001",
		"\uE002",
		"\uE000\uE001",
		"\uE001\uE001\uE000",
		"\uE001\uE002.",
		"mix/\uE000/\uE001/end",
		"\uE001/",
		"üñïçødé/тест",
	}
	for _, title := range titles {
		for _, ext := range []string{"", "md", "link"} {
			fn := TitleToFilename(title, ext)
			got := FilenameToTitle(fn)
			if got != title {
				t.Errorf("round trip failed: title=%q ext=%q filename=%q got=%q", title, ext, fn, got)
			}
		}
	}
}

func TestTitleToFilenameHasNoSeparator(t *testing.T) {
	fn := TitleToFilename("a/b/c", "md")
	for _, r := range fn {
		if r == '/' {
			t.Fatalf("encoded filename contains separator: %q", fn)
		}
	}
}

func TestTitleToFilenameWithoutExtensionHasNoDot(t *testing.T) {
	fn := TitleToFilename("dots.in.title", "")
	if strings.ContainsRune(fn, '.') {
		t.Fatalf("encoded filename contains dot: %q", fn)
	}
	if got := FilenameToTitle(fn); got != "dots.in.title" {
		t.Errorf("got %q, want %q", got, "dots.in.title")
	}
}

func TestFilenameToTitleStripsFinalExtensionOnly(t *testing.T) {
	if got := FilenameToTitle("v1.2.md"); got != "v1.2" {
		t.Errorf("got %q, want %q", got, "v1.2")
	}
	if got := FilenameToTitle("no-extension"); got != "no-extension" {
		t.Errorf("got %q, want %q", got, "no-extension")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want models.Kind
	}{
		{"notes/hello.md", models.KindNote},
		{"hello.MD", models.KindNote},
		{"bookmarks/site.link", models.KindLink},
		{"img/photo.png", models.KindDocument},
		{"README", models.KindDocument},
		{"dir.with.dots/file", models.KindDocument},
	}
	for _, c := range cases {
		if got := Classify(c.path); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestSplitLocationAndFilename(t *testing.T) {
	loc, fn := SplitLocationAndFilename("a/b/c.md")
	if loc != "a/b" || fn != "c.md" {
		t.Errorf("got (%q, %q)", loc, fn)
	}
	loc, fn = SplitLocationAndFilename("root.md")
	if loc != "" || fn != "root.md" {
		t.Errorf("got (%q, %q)", loc, fn)
	}
	if Join(loc, fn) != "root.md" {
		t.Errorf("Join mismatch")
	}
	if Join("a/b", "c.md") != "a/b/c.md" {
		t.Errorf("Join mismatch")
	}
}
