package markdown

import (
	"errors"
	"strings"
	"testing"
)

const tutorial = "# Rotating OAuth secrets\n\n" +
	"Secrets leak. Rotation keeps the blast radius small.\n\n" +
	"## Before you start\n\n" +
	"You need admin access and the [provider console](https://example.com).\n\n" +
	"## Steps\n\n" +
	"1. Create a second secret.\n2. Deploy it.\n3. Revoke the old one.\n\n" +
	"```sh\nvault kv put secret/oauth value=new\n```\n"

func TestStatsCountsStructure(t *testing.T) {
	s := Parse(tutorial).Stats()
	if s.Headings != 3 || s.OrderedLists != 1 || s.CodeBlocks != 1 || s.Links != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.Words < 20 || s.ReadingMinutes != 1 {
		t.Fatalf("unexpected word stats %+v", s)
	}
	if strings.Contains(tutorial, "vault") && s.Words > 40 {
		t.Fatalf("code block words must not be counted: %+v", s)
	}
}

func TestTitleAndDigest(t *testing.T) {
	doc := Parse(tutorial)
	if doc.Title() != "Rotating OAuth secrets" {
		t.Fatalf("Title: %q", doc.Title())
	}
	if doc.Digest(0) != "Secrets leak. Rotation keeps the blast radius small." {
		t.Fatalf("Digest: %q", doc.Digest(0))
	}
	short := doc.Digest(20)
	if !strings.HasSuffix(short, "…") || len([]rune(short)) > 21 {
		t.Fatalf("Digest(20): %q", short)
	}
	if Parse("## Only a subheading\n\ntext").Title() != "Only a subheading" {
		t.Fatalf("fallback title")
	}
}

func TestHTMLRenders(t *testing.T) {
	html, err := Parse("# Hi\n\n- a\n- b\n").HTML()
	if err != nil || !strings.Contains(html, "<h1>Hi</h1>") || !strings.Contains(html, "<li>a</li>") {
		t.Fatalf("HTML: %q %v", html, err)
	}
}

func TestCheckLayout(t *testing.T) {
	cases := []struct {
		layout string
		body   string
		ok     bool
	}{
		{"tutorial", tutorial, true},
		{"tutorial", "Just one paragraph of text.", false},
		{"interview", "**Why OAuth?**\n\nBecause.\n\n## What about PKCE?\n\nUse it.", true},
		{"interview", "No questions here.", false},
		{"changelog", "## 1.2.0\n\n- Fixed token refresh\n- Added PKCE\n", true},
		{"changelog", "We fixed things.", false},
		{"article", "One.\n\nTwo.\n\nThree.", true},
		{"article", "Only one paragraph.", false},
		{"article", "", false},
	}
	for _, tc := range cases {
		err := CheckLayout(tc.layout, Parse(tc.body).Stats())
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.layout, err)
		}
		if !tc.ok && !errors.Is(err, ErrSchema) {
			t.Fatalf("%s %q: expected ErrSchema, got %v", tc.layout, tc.body, err)
		}
	}
}
