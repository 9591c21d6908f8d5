// Package markdown implements the Markdown serialization codec: YAML
// frontmatter delimited by --- lines, a canonical re-emission order for
// repeated writes, and the slug-based filename policy.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the parsed YAML header of a spec or issue markdown file.
// Extra keys round-trip through Extra so an unrecognized field is never
// silently dropped on rewrite.
type Frontmatter struct {
	ID       string   `yaml:"id"`
	UUID     string   `yaml:"uuid"`
	Title    string   `yaml:"title"`
	Status   string   `yaml:"status,omitempty"`
	Priority *int     `yaml:"priority,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Extra    map[string]interface{} `yaml:"-"`
}

// Document is a parsed markdown file: frontmatter plus body.
type Document struct {
	Frontmatter Frontmatter
	Body        string
}

const delimiter = "---"

// Parse splits raw markdown into its frontmatter and body. It requires an
// opening "---" line, a closing "---" line, then the body (the blank line
// separating the closing delimiter from the body is consumed but not
// required — some editors strip trailing blank lines on save).
func Parse(raw []byte) (*Document, error) {
	text := string(raw)
	lines := strings.Split(text, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return nil, fmt.Errorf("markdown: missing opening frontmatter delimiter")
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, fmt.Errorf("markdown: missing closing frontmatter delimiter")
	}

	yamlBlock := strings.Join(lines[1:closeIdx], "\n")

	var raw2 map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlBlock), &raw2); err != nil {
		return nil, fmt.Errorf("markdown: invalid frontmatter yaml: %w", err)
	}

	fm, err := decodeFrontmatter(raw2)
	if err != nil {
		return nil, err
	}

	bodyLines := lines[closeIdx+1:]
	// Drop a single leading blank line separating the closing delimiter
	// from the body, if present.
	if len(bodyLines) > 0 && strings.TrimSpace(bodyLines[0]) == "" {
		bodyLines = bodyLines[1:]
	}
	body := strings.Join(bodyLines, "\n")

	return &Document{Frontmatter: *fm, Body: body}, nil
}

func decodeFrontmatter(raw map[string]interface{}) (*Frontmatter, error) {
	fm := &Frontmatter{Extra: map[string]interface{}{}}

	known := map[string]bool{"id": true, "uuid": true, "title": true, "status": true, "priority": true, "tags": true}

	for k, v := range raw {
		if !known[k] {
			fm.Extra[k] = v
			continue
		}
		switch k {
		case "id":
			fm.ID = fmt.Sprint(v)
		case "uuid":
			fm.UUID = fmt.Sprint(v)
		case "title":
			fm.Title = fmt.Sprint(v)
		case "status":
			fm.Status = fmt.Sprint(v)
		case "priority":
			p := toInt(v)
			fm.Priority = &p
		case "tags":
			fm.Tags = toStringSlice(v)
		}
	}

	if fm.ID == "" {
		return nil, fmt.Errorf("markdown: frontmatter missing required field 'id'")
	}
	if fm.Title == "" {
		return nil, fmt.Errorf("markdown: frontmatter missing required field 'title'")
	}

	return fm, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, fmt.Sprint(e))
	}
	return out
}

// canonicalKeyOrder is the order in which Render always emits known
// frontmatter keys, so repeated writes of unchanged content are byte
// identical (spec 4.B: "writer re-emits a canonical ordering of
// frontmatter keys so repeated writes are textually stable").
var canonicalKeyOrder = []string{"id", "uuid", "title", "status", "priority", "tags"}

// Render re-serializes a Document to its canonical on-disk form.
func Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	ordered := orderedFrontmatter(doc.Frontmatter)
	if err := encodeOrdered(&buf, ordered); err != nil {
		return nil, err
	}
	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(doc.Body)
	if !strings.HasSuffix(doc.Body, "\n") {
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

type kv struct {
	key   string
	value interface{}
}

func orderedFrontmatter(fm Frontmatter) []kv {
	var out []kv
	add := func(k string, v interface{}, omitEmpty bool) {
		if omitEmpty && isEmptyValue(v) {
			return
		}
		out = append(out, kv{k, v})
	}

	add("id", fm.ID, false)
	add("uuid", fm.UUID, false)
	add("title", fm.Title, false)
	add("status", fm.Status, true)
	if fm.Priority != nil {
		add("priority", *fm.Priority, false)
	}
	add("tags", fm.Tags, true)

	// Extra keys (not part of the canonical schema) are appended in
	// sorted order after the known keys, so they still round-trip.
	for _, k := range sortedKeys(fm.Extra) {
		add(k, fm.Extra[k], false)
	}
	return out
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	}
	return v == nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func encodeOrdered(buf *bytes.Buffer, ordered []kv) error {
	for _, pair := range ordered {
		line, err := yamlScalarLine(pair.key, pair.value)
		if err != nil {
			return err
		}
		buf.WriteString(line)
	}
	return nil
}

func yamlScalarLine(key string, value interface{}) (string, error) {
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return key + ": []\n", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s:\n", key)
		for _, item := range v {
			enc, err := yamlInlineScalar(item)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "  - %s\n", enc)
		}
		return b.String(), nil
	default:
		enc, err := yamlInlineScalar(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s\n", key, enc), nil
	}
}

func yamlInlineScalar(v interface{}) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
