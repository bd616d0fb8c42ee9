package vault

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xvierd/notetime/internal/ports"
)

// inlineTagRe matches #tag tokens preceded by start of line or whitespace.
var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)

// FrontmatterTags reads tags from the YAML frontmatter `tags:` key and from
// inline #tags in the note body. Frontmatter tags come first.
type FrontmatterTags struct {
	Root string
}

// Ensure FrontmatterTags implements ports.TagExtractor.
var _ ports.TagExtractor = (*FrontmatterTags)(nil)

// ExtractTags reads the note at the vault-relative path p.
func (f *FrontmatterTags) ExtractTags(p string) ([]string, error) {
	raw, err := os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(p)))
	if err != nil {
		return nil, fmt.Errorf("failed to read note: %w", err)
	}
	return ParseTags(raw)
}

// ParseTags extracts the tags of a note's content.
func ParseTags(content []byte) ([]string, error) {
	front, body := splitFrontmatter(content)

	var tags []string
	if front != nil {
		var meta struct {
			Tags any `yaml:"tags"`
			Tag  any `yaml:"tag"`
		}
		if err := yaml.Unmarshal(front, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		tags = append(tags, flattenTags(meta.Tags)...)
		tags = append(tags, flattenTags(meta.Tag)...)
	}
	tags = append(tags, inlineTags(body)...)
	return dedupe(tags), nil
}

// splitFrontmatter returns the YAML between a leading "---" line and the
// next "---" line, and the remaining body. front is nil without frontmatter.
func splitFrontmatter(content []byte) (front, body []byte) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return nil, content
	}
	rest := content[bytes.IndexByte(content, '\n')+1:]
	offset := 0
	for offset <= len(rest) {
		end := bytes.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if strings.TrimRight(string(line), "\r") == "---" {
			if end < 0 {
				return rest[:offset], nil
			}
			return rest[:offset], rest[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return nil, content
}

// flattenTags accepts a YAML list or a comma/space separated string.
func flattenTags(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, s := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, cleanTag(s))
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, cleanTag(s))
			} else if item != nil {
				out = append(out, cleanTag(fmt.Sprint(item)))
			}
		}
	}
	return out
}

// inlineTags scans body for #tags outside fenced code blocks. Purely
// numeric tokens such as issue numbers are not tags.
func inlineTags(body []byte) []string {
	var out []string
	inFence := false
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range inlineTagRe.FindAllStringSubmatch(line, -1) {
			if strings.Trim(m[1], "0123456789") == "" {
				continue
			}
			out = append(out, m[1])
		}
	}
	return out
}

func cleanTag(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "#")
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
