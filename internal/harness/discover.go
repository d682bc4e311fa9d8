package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrScenarioNotFound is returned when a scenario path does not exist.
var ErrScenarioNotFound = errors.New("scenario not found")

// ScenarioNotFoundError carries the missing path.
type ScenarioNotFoundError struct {
	Path string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario not found: %s", e.Path)
}

func (e *ScenarioNotFoundError) Unwrap() error {
	return ErrScenarioNotFound
}

// FindScenarios expands paths into scenario files. Directories are walked
// for *.yaml and *.yml files; files are taken as given. The result is
// sorted and free of duplicates.
func FindScenarios(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Failure is one scenario that did not pass.
type Failure struct {
	Path   string
	Name   string
	Errors []string
}

// Summary aggregates the results of RunAll.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Failures []Failure
}

// OK reports whether every scenario passed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// RunAll loads and runs every scenario file. A scenario that cannot be
// loaded or run counts as failed.
func RunAll(paths []string, opts ...Option) (*Summary, error) {
	files, err := FindScenarios(paths)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, path := range files {
		summary.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			summary.fail(path, "", err.Error())
			continue
		}
		result, err := Run(scenario, opts...)
		if err != nil {
			summary.fail(path, scenario.Name, err.Error())
			continue
		}
		if !result.Pass {
			summary.fail(path, scenario.Name, result.Errors...)
			continue
		}
		summary.Passed++
	}
	return summary, nil
}

func (s *Summary) fail(path, name string, errs ...string) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{Path: path, Name: name, Errors: errs})
}
