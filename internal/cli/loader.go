package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/harness"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeRunFailed = "E010" // One or more scenarios failed
)

// loadScenarios returns the scenarios in dir, or the built-in scenarios
// when dir is empty. Files are filtered by base name, builtins by scenario
// name, both with filepath.Match patterns.
func loadScenarios(dir, filter string, fx config.Fixtures) ([]*harness.Scenario, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid filter pattern %q: %v", filter, err))
		}
	}

	if dir == "" {
		var out []*harness.Scenario
		for _, s := range harness.Builtin(fx) {
			if matchFilter(filter, s.Name) {
				out = append(out, s)
			}
		}
		return out, nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "error accessing scenarios directory", err)
	}
	if !info.IsDir() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir))
	}

	files, err := findScenarioFiles(dir, filter)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	seen := make(map[string]string, len(files))
	scenarios := make([]*harness.Scenario, 0, len(files))
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", file), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("duplicate scenario name %q in %s and %s", s.Name, prev, file))
		}
		seen[s.Name] = file
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// findScenarioFiles finds all YAML scenario files in a directory, sorted by path.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		name := strings.TrimSuffix(filepath.Base(path), ext)
		if !matchFilter(filter, name) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// matchFilter reports whether name matches the glob filter. An empty filter
// matches everything; patterns are validated before use.
func matchFilter(filter, name string) bool {
	if filter == "" {
		return true
	}
	matched, _ := filepath.Match(filter, name)
	return matched
}
