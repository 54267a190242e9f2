package vault

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iamvkosarev/notechat/internal/model"
	"gopkg.in/yaml.v3"
)

const noteExt = ".md"

var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)

type frontMatter struct {
	Tags any `yaml:"tags"`
}

// Notes reads every Markdown note of the vault. Hidden directories and the
// configured skip dirs are not descended into.
func (v *Vault) Notes(ctx context.Context) ([]model.Note, error) {
	notes := make([]model.Note, 0)
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		rel, err := v.Rel(p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if _, skip := v.skipDirs[rel]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(path.Ext(rel), noteExt) {
			return nil
		}
		note, err := v.ReadNote(ctx, rel)
		if err != nil {
			return err
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to scan vault: %w", model.ErrIO, err)
	}
	return notes, nil
}

// ReadNote reads one file as a note. rel may also be an absolute path inside
// the vault. The note's path is cleaned.
func (v *Vault) ReadNote(ctx context.Context, rel string) (model.Note, error) {
	if filepath.IsAbs(rel) {
		var err error
		if rel, err = v.Rel(rel); err != nil {
			return model.Note{}, err
		}
	}
	rel = path.Clean(filepath.ToSlash(rel))
	data, err := v.ReadFile(ctx, rel)
	if err != nil {
		return model.Note{}, err
	}
	base := path.Base(rel)
	return model.Note{
		Path:    rel,
		Title:   strings.TrimSuffix(base, path.Ext(base)),
		Tags:    ParseTags(data),
		Content: string(data),
	}, nil
}

// ParseTags collects front matter tags and inline #tags, each with a leading
// '#', in order of first appearance.
func ParseTags(data []byte) []string {
	tags := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			return
		}
		tag = "#" + tag
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	fm, body := splitFrontMatter(data)
	if fm != nil {
		var meta frontMatter
		if err := yaml.Unmarshal(fm, &meta); err == nil {
			switch t := meta.Tags.(type) {
			case string:
				for _, tag := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' }) {
					add(tag)
				}
			case []any:
				for _, tag := range t {
					if s, ok := tag.(string); ok {
						add(s)
					}
				}
			}
		}
	}
	for _, match := range inlineTagRe.FindAllSubmatch(body, -1) {
		add(string(match[1]))
	}
	return tags
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// rest of the note. fm is nil when the note has none.
func splitFrontMatter(data []byte) (fm, body []byte) {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, normalized
	}
	fm = rest[:end]
	body = rest[end+len("\n---"):]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}
	return fm, body
}
