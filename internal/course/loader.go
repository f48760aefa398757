package course

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrCourseNotFound is returned when no course has the requested id.
var ErrCourseNotFound = errors.New("course not found")

// Loader loads and caches courses from a directory tree. JSON files are read
// with the YAML decoder.
type Loader struct {
	rootDir string
	courses map[string]*Course
	mu      sync.RWMutex
}

// NewLoader creates a loader and loads every course under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		courses: make(map[string]*Course),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading courses: %w", err)
	}

	slog.Info("courses loaded", "courses", len(l.courses))
	return l, nil
}

// NewStaticLoader serves the given courses without touching the filesystem.
func NewStaticLoader(courses ...*Course) *Loader {
	l := &Loader{courses: make(map[string]*Course, len(courses))}
	for _, c := range courses {
		c.normalize()
		l.courses[c.ID] = c
	}
	return l
}

// GetCourse returns a course by id.
func (l *Loader) GetCourse(id string) (*Course, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	return c, nil
}

// AllCourses returns every loaded course ordered by id.
func (l *Loader) AllCourses() []*Course {
	l.mu.RLock()
	defer l.mu.RUnlock()
	courses := make([]*Course, 0, len(l.courses))
	for _, c := range l.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); err != nil {
		return err
	}
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			return l.loadCourse(path)
		}
		return nil
	})
}

func (l *Loader) loadCourse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var c Course
	if err := yaml.Unmarshal(data, &c); err != nil {
		slog.Warn("skipping invalid course file", "path", path, "error", err)
		return nil
	}

	if c.ID == "" {
		return nil // Not a course file
	}
	c.normalize()

	l.mu.Lock()
	if _, dup := l.courses[c.ID]; dup {
		slog.Warn("duplicate course id, keeping last", "id", c.ID, "path", path)
	}
	l.courses[c.ID] = &c
	l.mu.Unlock()

	return nil
}

// ResolveMedia turns a lesson media reference into a playable URL. Absolute
// references are returned unchanged; relative ones resolve against base.
func ResolveMedia(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(r).String()
}
