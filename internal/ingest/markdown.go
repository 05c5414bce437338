// Markdown-to-plaintext extraction for .md KnowledgeFiles, so chunking and
// entity extraction see prose rather than formatting syntax.
//
// Grounded on web/format/markdown.go for this repo's existing use of the
// gomarkdown AST, generalized from that file's markdown<->XML tag
// conversion (aimed at LLM-authored fenced code blocks) to a full
// render-to-plaintext walk suitable for ingestion.
package ingest

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownToPlainText strips Markdown syntax, keeping only the textual
// content of headings, paragraphs, list items, and code blocks.
func MarkdownToPlainText(content []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse(content, p)

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Literal)
			sb.WriteString(" ")
		case *ast.CodeBlock:
			sb.Write(n.Literal)
			sb.WriteString(" ")
		case *ast.Code:
			sb.Write(n.Literal)
			sb.WriteString(" ")
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			// structural nodes; their child Text nodes carry content
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(sb.String())
}
