// Package course loads the generated course catalog from disk and
// resolves lesson lookups for teaching sessions.
package course

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrModuleNotFound   = errors.New("module not found")
	ErrSubTopicNotFound = errors.New("sub-topic not found")
)

type SubTopic struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

type Module struct {
	Week      int        `json:"week,omitempty"`
	Title     string     `json:"title"`
	SubTopics []SubTopic `json:"sub_topics"`
}

type Course struct {
	CourseID string   `json:"course_id,omitempty"`
	Title    string   `json:"course_title"`
	Modules  []Module `json:"modules"`
}

// Store holds the loaded catalog. Reload replaces the contents
// atomically so lookups during a reload see a consistent snapshot.
type Store struct {
	path string

	mu      sync.RWMutex
	courses map[string]*Course
	order   []string
}

func NewStore(path string) *Store {
	return &Store{path: path, courses: map[string]*Course{}}
}

// Load reads the catalog file. The file holds either a single course
// object or a list of courses.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read course catalog: %w", err)
	}

	var courses []*Course
	if err := json.Unmarshal(data, &courses); err != nil {
		var single Course
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("decode course catalog: %w", err)
		}
		courses = []*Course{&single}
	}

	byID := make(map[string]*Course, len(courses))
	order := make([]string, 0, len(courses))
	for i, c := range courses {
		if c.CourseID == "" {
			c.CourseID = fmt.Sprintf("course-%d", i+1)
		}
		byID[c.CourseID] = c
		order = append(order, c.CourseID)
	}

	s.mu.Lock()
	s.courses = byID
	s.order = order
	s.mu.Unlock()
	return nil
}

// Courses returns the catalog in file order.
func (s *Store) Courses() []*Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Course, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.courses[id])
	}
	return out
}

// Course returns the course with the given ID.
func (s *Store) Course(id string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	return c, nil
}

// Lookup resolves one lesson by course ID and zero-based indices.
func (s *Store) Lookup(courseID string, moduleIndex, subTopicIndex int) (*Module, *SubTopic, error) {
	c, err := s.Course(courseID)
	if err != nil {
		return nil, nil, err
	}
	if moduleIndex < 0 || moduleIndex >= len(c.Modules) {
		return nil, nil, fmt.Errorf("%w: index %d of %d", ErrModuleNotFound, moduleIndex, len(c.Modules))
	}
	mod := &c.Modules[moduleIndex]
	if subTopicIndex < 0 || subTopicIndex >= len(mod.SubTopics) {
		return nil, nil, fmt.Errorf("%w: index %d of %d", ErrSubTopicNotFound, subTopicIndex, len(mod.SubTopics))
	}
	return mod, &mod.SubTopics[subTopicIndex], nil
}
