package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var (
	// goSeparator matches a batch separator line the way the sql server client
	// tools do, including the optional repeat count ("GO 5").
	goSeparator = regexp.MustCompile(`(?i)^\s*GO(?:\s+(\d+))?\s*;?\s*$`)

	// scriptingVar matches sqlcmd scripting variables of the form $(NAME).
	scriptingVar = regexp.MustCompile(`\$\((\w+)\)`)
)

// Script is an ordered batch of statements read from an initialization script file.
type Script struct {
	Path    string
	batches []string
}

// Load reads the script at the given path, expands sqlcmd-style scripting
// variables from vars and splits the content into batches on GO separator lines.
func Load(fs afero.Fs, path string, vars map[string]string) (*Script, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("unable to read init script: %w", err)
	}

	content, err := expandVars(string(raw), vars)
	if err != nil {
		return nil, fmt.Errorf("unable to expand variables in %s: %w", path, err)
	}

	s := &Script{
		Path: path,
	}

	var current []string
	flush := func(repeat int) {
		batch := strings.TrimSpace(strings.Join(current, "\n"))
		current = nil
		if batch == "" {
			return
		}
		for range repeat {
			s.batches = append(s.batches, batch)
		}
	}

	for line := range strings.Lines(content) {
		if m := goSeparator.FindStringSubmatch(line); m != nil {
			repeat := 1
			if m[1] != "" {
				repeat, err = strconv.Atoi(m[1])
				if err != nil || repeat < 1 {
					return nil, fmt.Errorf("invalid repeat count in %s: %q", path, strings.TrimSpace(line))
				}
			}
			flush(repeat)
			continue
		}
		current = append(current, strings.TrimSuffix(line, "\n"))
	}
	flush(1)

	if len(s.batches) == 0 {
		return nil, fmt.Errorf("init script %s contains no statements", path)
	}

	return s, nil
}

// Batches returns the statement batches in script order.
func (s *Script) Batches() []string {
	return s.batches
}

func expandVars(content string, vars map[string]string) (string, error) {
	var missing []string

	expanded := scriptingVar.ReplaceAllStringFunc(content, func(match string) string {
		name := scriptingVar.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("undefined scripting variables: %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}
