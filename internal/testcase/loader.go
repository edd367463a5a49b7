package testcase

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tcm/internal/tcerr"
	"tcm/pkg/logging"
)

const subsystem = "Loader"

// Store locates test case documents under a storage root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at root. A root that is a single file is
// also accepted.
func NewStore(root string) *Store {
	if root == "" {
		root = "."
	}
	return &Store{root: root}
}

// Root returns the storage root.
func (s *Store) Root() string {
	return s.root
}

// LoadAll loads every test case under the root, ordered by id.
// YAML documents that are not test cases (no id and no test_sequences) are
// skipped; duplicate ids are a configuration error.
func (s *Store) LoadAll() ([]TestCase, error) {
	logging.Debug(subsystem, "Loading test cases from: %s", s.root)

	info, err := os.Stat(s.root)
	if os.IsNotExist(err) {
		return nil, tcerr.Configuration("test case path does not exist: %s", s.root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat test case path: %w", err)
	}

	var testCases []TestCase
	if !info.IsDir() {
		tc, ok, err := loadFile(s.root)
		if err != nil {
			return nil, err
		}
		if ok {
			testCases = append(testCases, tc)
		}
		return testCases, nil
	}

	seen := make(map[string]string)
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isYAMLFile(path) {
			return nil
		}

		tc, ok, err := loadFile(path)
		if err != nil {
			return err
		}
		if !ok {
			logging.Debug(subsystem, "Skipping non test case document: %s", path)
			return nil
		}

		if previous, dup := seen[tc.ID]; dup {
			return tcerr.Configuration("duplicate test case id %q in %s and %s", tc.ID, previous, path)
		}
		seen[tc.ID] = path

		testCases = append(testCases, tc)
		return nil
	})
	if err != nil {
		if tcerr.IsConfiguration(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to walk directory %s: %w", s.root, err)
	}

	sort.SliceStable(testCases, func(i, j int) bool {
		return testCases[i].ID < testCases[j].ID
	})

	logging.Debug(subsystem, "Loaded %d test cases", len(testCases))
	return testCases, nil
}

// Find locates the test case with the given id. Files named <id>.yaml or
// <id>.yml directly under the root are tried before a full walk.
func (s *Store) Find(id string) (*TestCase, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(s.root, id+ext)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		tc, ok, err := loadFile(candidate)
		if err != nil {
			return nil, err
		}
		if ok && tc.ID == id {
			return &tc, nil
		}
	}

	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, tcerr.TestCaseNotFound(id)
}

// LoadFile loads a single test case document.
func LoadFile(path string) (*TestCase, error) {
	tc, ok, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tcerr.Configuration("%s is not a test case document", path)
	}
	return &tc, nil
}

// loadFile parses path. ok is false for YAML documents that carry neither an
// id nor test sequences.
func loadFile(path string) (TestCase, bool, error) {
	var tc TestCase

	content, err := os.ReadFile(path)
	if err != nil {
		return tc, false, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &tc); err != nil {
		return tc, false, tcerr.Configuration("failed to parse YAML in %s: %v", path, err)
	}

	if tc.ID == "" && len(tc.Sequences) == 0 {
		return tc, false, nil
	}

	if err := validate(tc); err != nil {
		return tc, false, tcerr.Configuration("invalid test case in %s: %v", path, err)
	}

	tc.SourcePath = path
	return tc, true, nil
}

// validate checks document-level fields. Step rules are enforced when the
// test case is compiled.
func validate(tc TestCase) error {
	if strings.TrimSpace(tc.ID) == "" {
		return fmt.Errorf("test case id is required")
	}

	if len(tc.Sequences) == 0 {
		return fmt.Errorf("test case must have at least one test sequence")
	}

	ids := make(map[int]bool)
	for _, seq := range tc.Sequences {
		if ids[seq.ID] {
			return fmt.Errorf("duplicate test sequence id %d", seq.ID)
		}
		ids[seq.ID] = true
	}

	return nil
}

// isYAMLFile checks if a file has a YAML extension
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
