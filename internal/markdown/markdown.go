package markdown

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const wordsPerMinute = 230

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Stats summarizes a markdown body. It is stored on the content row.
type Stats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	Headings       int `json:"headings"`
	Paragraphs     int `json:"paragraphs"`
	Questions      int `json:"questions"`
	BulletLists    int `json:"bullet_lists"`
	OrderedLists   int `json:"ordered_lists"`
	CodeBlocks     int `json:"code_blocks"`
	Links          int `json:"links"`
	ReadingMinutes int `json:"reading_minutes"`
}

// Document is a parsed markdown body.
type Document struct {
	src  []byte
	root ast.Node
}

func Parse(body string) *Document {
	src := []byte(body)
	return &Document{src: src, root: md.Parser().Parse(text.NewReader(src))}
}

func (d *Document) Stats() Stats {
	var s Stats
	_ = ast.Walk(d.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			s.Headings++
			if strings.HasSuffix(d.plain(node), "?") {
				s.Questions++
			}
		case *ast.Paragraph:
			s.Paragraphs++
			p := d.plain(node)
			s.Words += len(strings.Fields(p))
			s.Characters += utf8.RuneCountInString(p)
			if strings.HasSuffix(p, "?") || strings.HasPrefix(p, "Q:") {
				s.Questions++
			}
		case *ast.TextBlock:
			p := d.plain(node)
			s.Words += len(strings.Fields(p))
			s.Characters += utf8.RuneCountInString(p)
		case *ast.List:
			if node.IsOrdered() {
				s.OrderedLists++
			} else {
				s.BulletLists++
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			s.CodeBlocks++
			return ast.WalkSkipChildren, nil
		case *ast.Link, *ast.AutoLink:
			s.Links++
		}
		return ast.WalkContinue, nil
	})
	if s.Words > 0 {
		s.ReadingMinutes = (s.Words + wordsPerMinute - 1) / wordsPerMinute
	}
	return s
}

// Title is the text of the first level-1 heading, or of the first heading
// of any level when there is none.
func (d *Document) Title() string {
	var first, h1 string
	_ = ast.Walk(d.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		t := d.plain(h)
		if first == "" {
			first = t
		}
		if h.Level == 1 {
			h1 = t
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	if h1 != "" {
		return h1
	}
	return first
}

// Digest is the first paragraph's text, cut at limit runes on a word boundary.
func (d *Document) Digest(limit int) string {
	var out string
	_ = ast.Walk(d.root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if p, ok := n.(*ast.Paragraph); ok && entering {
			out = d.plain(p)
			if out != "" {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return truncateWords(out, limit)
}

// HTML renders the document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, d.src, d.root); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) plain(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(d.src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			for cc := t.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if seg, ok := cc.(*ast.Text); ok {
					b.Write(seg.Segment.Value(d.src))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func truncateWords(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)[:limit]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
