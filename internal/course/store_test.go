package course

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const catalogJSON = `{
  "course_title": "Introduction to Biology",
  "modules": [
    {
      "week": 1,
      "title": "Cells",
      "sub_topics": [
        {"title": "Cell structure", "content": "Cells are the basic unit of life."},
        {"title": "Cell division"}
      ]
    },
    {
      "week": 2,
      "title": "Genetics",
      "sub_topics": [
        {"title": "DNA", "content": "DNA stores genetic information."}
      ]
    }
  ]
}`

func writeCatalog(t *testing.T, body string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "course_output.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadSingleCourse(t *testing.T) {
	s := writeCatalog(t, catalogJSON)

	courses := s.Courses()
	if len(courses) != 1 {
		t.Fatalf("expected 1 course, got %d", len(courses))
	}
	if courses[0].Title != "Introduction to Biology" {
		t.Fatalf("unexpected title %q", courses[0].Title)
	}
	if courses[0].CourseID != "course-1" {
		t.Fatalf("expected synthesized id, got %q", courses[0].CourseID)
	}
}

func TestLoadCourseList(t *testing.T) {
	s := writeCatalog(t, `[`+catalogJSON+`,{"course_id":"phys","course_title":"Physics","modules":[]}]`)

	if len(s.Courses()) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(s.Courses()))
	}
	if _, err := s.Course("phys"); err != nil {
		t.Fatalf("explicit course id not honored: %v", err)
	}
}

func TestLookup(t *testing.T) {
	s := writeCatalog(t, catalogJSON)

	mod, sub, err := s.Lookup("course-1", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if mod.Title != "Cells" || sub.Title != "Cell division" {
		t.Fatalf("wrong lesson: module %q sub-topic %q", mod.Title, sub.Title)
	}
	if sub.Content != "" {
		t.Fatalf("expected empty content, got %q", sub.Content)
	}
}

func TestLookupErrors(t *testing.T) {
	s := writeCatalog(t, catalogJSON)

	if _, _, err := s.Lookup("missing", 0, 0); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
	if _, _, err := s.Lookup("course-1", 99, 0); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
	if _, _, err := s.Lookup("course-1", -1, 0); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound for negative index, got %v", err)
	}
	if _, _, err := s.Lookup("course-1", 1, 5); !errors.Is(err, ErrSubTopicNotFound) {
		t.Fatalf("expected ErrSubTopicNotFound, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	if err := s.Load(); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
