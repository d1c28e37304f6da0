package document

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Metadata is written as YAML front matter when exporting a brochure.
type Metadata struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Company string `yaml:"company"`
	// Source is the website the brochure was generated from.
	Source string `yaml:"source"`
	Model  string `yaml:"model,omitempty"`
	// Links are the resolved URLs of the pages that were selected.
	Links         []string `yaml:"links,omitempty"`
	GeneratedTime string   `yaml:"generatedTime"`
}

// Document is a generated brochure.
type Document struct {
	// The markdown content of the brochure.
	Content string
	// Metadata about the brochure.
	Metadata Metadata
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

func (d *Document) HasTitle() bool {
	return d.Metadata.Title != ""
}

// FindTitle sets and returns the title of the document, which is the first level 1
// heading unless a title is already set.
func (d *Document) FindTitle() string {
	// If the title is already set, return it.
	if d.Metadata.Title != "" {
		return d.Metadata.Title
	}

	content := []byte(d.Content)
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering && heading.Level == 1 {
			var titleBuilder strings.Builder
			// Walk through child nodes of the heading
			for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
				if text, ok := child.(*ast.Text); ok {
					titleBuilder.Write(text.Segment.Value(content))
				}
			}
			title = titleBuilder.String()
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	d.Metadata.Title = title
	return title
}

// ToMarkdown converts the Document to a markdown string, with metadata as YAML front matter.
// It returns the filename and the markdown content, and an optional error.
func (d *Document) ToMarkdown() (string, string, error) {
	// Make sure title is set
	d.FindTitle()

	var builder strings.Builder
	frontMatter, err := yaml.Marshal(d.Metadata)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal metadata to YAML")
	}

	builder.WriteString("---\n")
	builder.Write(frontMatter)
	builder.WriteString("---\n")
	builder.WriteString(d.Content)

	return d.FileName(), builder.String(), nil
}

// FileName derives a file name from the title, or the company name if there is none.
func (d *Document) FileName() string {
	name := sanitizeFileName(d.Metadata.Title)
	if name == "" {
		name = sanitizeFileName(d.Metadata.Company)
	}
	if name == "" {
		name = "brochure"
	}

	return name + ".md"
}

// RenderHTML renders markdown to HTML. Raw HTML in the input is not passed through.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}

	return buf.String(), nil
}

var unsafeChars = regexp.MustCompile(`[\/\\:\*\?"<>\|\p{C}]`)

func sanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "-")
	return strings.Trim(name, " .")
}
