// Package ignore matches paths against gitignore-style patterns and walks
// directory trees honoring the ignore files found along the way.
//
// Supported syntax follows https://git-scm.com/docs/gitignore: wildcards
// (*, ?, **), character classes, rooted patterns (/build), negation
// (!keep.md), directory-only patterns (tmp/) and escaped leading # or !.
package ignore

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Files are the ignore files Walk reads in every directory.
var Files = []string{".gitignore", ".ragignore"}

// Matcher holds compiled patterns. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool   // matched against the path from base, not per component
	base     string // slash-separated directory the pattern was declared in
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Add compiles one pattern line. base is the directory, relative to the
// walk root, whose ignore file declared it; "" means the root. Blank lines
// and comments are skipped.
func (m *Matcher) Add(line, base string) {
	r, ok := compile(line)
	if !ok {
		return
	}
	r.base = strings.Trim(filepath.ToSlash(base), "/")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFile adds every pattern in the file at path.
func (m *Matcher) AddFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.Add(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ignore file %s: %w", path, err)
	}
	return nil
}

// Match reports whether the path, relative to the walk root, is ignored.
// The last matching rule wins, so a later negation re-includes a path.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r rule) matches(path string, isDir bool) bool {
	if r.base != "" {
		rest, ok := strings.CutPrefix(path, r.base+"/")
		if !ok {
			return false
		}
		path = rest
	}

	// Every proper prefix is a directory containing path, so a match there
	// ignores path too.
	parts := strings.Split(path, "/")
	for j := 1; j <= len(parts); j++ {
		target := parts[j-1]
		if r.anchored {
			target = strings.Join(parts[:j], "/")
		}
		if !r.re.MatchString(target) {
			continue
		}
		if j < len(parts) {
			return true
		}
		return !r.dirOnly || isDir
	}
	return false
}

// compile parses one pattern line.
func compile(line string) (rule, bool) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false
	}
	if escapedSpace {
		p = strings.TrimSuffix(p, `\`) + " "
	}

	var r rule
	switch {
	case strings.HasPrefix(p, `\#`), strings.HasPrefix(p, `\!`):
		p = p[1:]
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	}

	if trimmed, ok := strings.CutSuffix(p, "/"); ok {
		r.dirOnly = true
		p = trimmed
	}
	if trimmed, ok := strings.CutPrefix(p, "/"); ok {
		r.anchored = true
		p = trimmed
	}
	// "doc/frotz" is relative to the ignore file, not any depth.
	if strings.Contains(p, "/") {
		r.anchored = true
	}
	if p == "" {
		return rule{}, false
	}

	re, err := regexp.Compile("^" + toRegex(p) + "$")
	if err != nil {
		return rule{}, false
	}
	r.re = re
	return r, true
}

// toRegex translates glob syntax to a regular expression.
func toRegex(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if strings.HasPrefix(p[i:], "**") && (i == 0 || p[i-1] == '/') {
				if strings.HasPrefix(p[i:], "**/") {
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(p[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i+1 : i+1+end]
			if rest, ok := strings.CutPrefix(class, "!"); ok {
				class = "^" + rest
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(p) {
				i++
				b.WriteString(regexp.QuoteMeta(string(p[i])))
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// Walk returns the files under root that keep accepts, sorted. Hidden
// directories are skipped, and so is anything matched by the ignore files
// of root or of the directories on its way.
func Walk(root string, keep func(path string) bool) ([]string, error) {
	m := New()
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || m.Match(rel, true)) {
				return filepath.SkipDir
			}
			base := rel
			if base == "." {
				base = ""
			}
			for _, name := range Files {
				file := filepath.Join(path, name)
				if _, statErr := os.Stat(file); statErr != nil {
					continue
				}
				if err := m.AddFile(file, base); err != nil {
					return err
				}
			}
			return nil
		}

		if !m.Match(rel, false) && keep(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(found)
	return found, nil
}
