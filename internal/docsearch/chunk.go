package docsearch

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Format is a supported document format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// FormatFor picks a format from the file extension. ok is false for
// files the indexer does not read.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".html", ".htm":
		return FormatHTML, true
	case ".txt", ".csv", ".text":
		return FormatText, true
	}
	return "", false
}

// ChunkFile reads path and splits it into one chunk per non-blank line
// of readable text.
func ChunkFile(path string) ([]Chunk, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ChunkBytes(format, data), nil
}

// ChunkBytes splits data of the given format into line chunks.
func ChunkBytes(format Format, data []byte) []Chunk {
	switch format {
	case FormatMarkdown:
		return chunkMarkdown(data)
	case FormatHTML:
		return chunkHTML(data)
	}
	return chunkLines(string(data), nil)
}

// chunkLines turns every non-blank line into a chunk carrying meta.
func chunkLines(s string, meta map[string]any) []Chunk {
	var out []Chunk
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.Join(strings.Fields(sc.Text()), " ")
		if line == "" {
			continue
		}
		m := make(map[string]any, len(meta))
		for k, v := range meta {
			m[k] = v
		}
		out = append(out, Chunk{Content: line, Metadata: m})
	}
	return out
}

// chunkMarkdown walks the goldmark AST so inline markup is dropped and
// each chunk remembers the heading it sits under.
func chunkMarkdown(src []byte) []Chunk {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []Chunk
	var section string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			section = strings.TrimSpace(inlineText(node, src))
			if section != "" {
				out = append(out, Chunk{Content: section, Metadata: map[string]any{"section": section, "kind": "heading"}})
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			out = append(out, chunkLines(inlineText(node, src), sectionMeta(section))...)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var b bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			out = append(out, chunkLines(b.String(), sectionMeta(section))...)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func sectionMeta(section string) map[string]any {
	if section == "" {
		return nil
	}
	return map[string]any{"section": section}
}

// inlineText concatenates the text of n's inline children, turning line
// breaks into newlines.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// skipElements hold no readable text.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Template: true,
}

// blockElements end a line of text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Section: true, atom.Article: true,
	atom.Blockquote: true, atom.Pre: true, atom.Td: true, atom.Th: true,
}

// chunkHTML extracts visible text, one chunk per rendered line. Table
// cells on one row are joined with commas so an address row stays one
// chunk.
func chunkHTML(data []byte) []Chunk {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return chunkLines(string(data), nil)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
				if hasNextCell(n) {
					b.WriteString(", ")
				}
			case blockElements[n.DataAtom]:
				b.WriteByte('\n')
			}
		}
	}
	walk(doc)
	return chunkLines(b.String(), nil)
}

func hasNextCell(n *html.Node) bool {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && (s.DataAtom == atom.Td || s.DataAtom == atom.Th) {
			return true
		}
	}
	return false
}
