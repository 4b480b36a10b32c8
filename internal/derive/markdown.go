package derive

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/resolver"
	"github.com/aidanlsb/sramp/internal/slugs"
)

// javaTypeName matches fully qualified Java type names such as
// org.example.OrderService.
var javaTypeName = regexp.MustCompile(`^(?:[a-z_][a-z0-9_]*\.)+[A-Z][A-Za-z0-9_$]*$`)

// MarkdownDeriver derives sections from a Markdown document and links it to
// the Java types and documents it mentions.
type MarkdownDeriver struct{}

// PropertyAnchor holds a section's fragment identifier, e.g. "order-processing".
const PropertyAnchor = "anchor"

// Derive creates one MarkdownSection per heading. Scalar front matter fields
// become properties of the primary. Inline code naming a Java type becomes a
// source in "documents"; relative links become sources in "references",
// matched by file name.
func (MarkdownDeriver) Derive(primary *model.Artifact, content []byte) (*Derivation, error) {
	body, fields, err := splitFrontmatter(content)
	if err != nil {
		return nil, errors.Wrapf(err, "parse front matter of %s", primary.Name)
	}
	for k, v := range fields {
		primary.SetProperty(k, v)
	}
	if desc, ok := fields["description"]; ok && primary.Description == "" {
		primary.Description = desc
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(body))
	d := &Derivation{}
	seen := make(map[string]bool)

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil

		case *ast.Heading:
			title := strings.TrimSpace(inlineText(node, body))
			if title == "" {
				return ast.WalkSkipChildren, nil
			}
			section := newDerived(primary, primary.Model, TypeMarkdownSection, title)
			section.SetProperty("level", strconv.Itoa(node.Level))
			if anchor := slugs.Heading(title); anchor != "" {
				section.SetProperty(PropertyAnchor, anchor)
			}
			d.Artifacts = append(d.Artifacts, section)

		case *ast.CodeSpan:
			name := strings.TrimSpace(inlineText(node, body))
			if javaTypeName.MatchString(name) && !seen["java:"+name] {
				seen["java:"+name] = true
				d.Sources = append(d.Sources, resolver.NewSource(resolver.SourceOptions{
					Owner:    primary.EnsureRelationship("documents"),
					Model:    model.ModelExt,
					Types:    []string{TypeJavaClass, TypeJavaInterface},
					Criteria: resolver.JavaClass(name),
				}))
			}
			return ast.WalkSkipChildren, nil

		case *ast.Link:
			if file, ok := relativeLinkFile(string(node.Destination)); ok && !seen["link:"+file] {
				seen["link:"+file] = true
				d.Sources = append(d.Sources, resolver.NewSource(resolver.SourceOptions{
					Owner:    primary.EnsureRelationship("references"),
					Criteria: resolver.Literal("name", file),
				}))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// inlineText concatenates the text of n's descendants.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(source))
				if t.SoftLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// relativeLinkFile returns the file name a relative link points at.
func relativeLinkFile(dest string) (string, bool) {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") || strings.Contains(dest, ":") {
		return "", false
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	file := path.Base(dest)
	if file == "." || file == "/" || file == "" {
		return "", false
	}
	return file, true
}

// splitFrontmatter separates a leading YAML block delimited by "---" lines
// from the body. Only scalar values are returned.
func splitFrontmatter(content []byte) ([]byte, map[string]string, error) {
	lines := strings.Split(string(content), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return content, nil, nil
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content, nil, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &raw); err != nil {
		return nil, nil, err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case string, int, int64, float64, bool:
			fields[k] = fmt.Sprint(v)
		}
	}
	return []byte(strings.Join(lines[end+1:], "\n")), fields, nil
}
