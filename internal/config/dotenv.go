package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type dotEnvEntry struct {
	key   string
	value string
}

// parseDotEnv reads KEY=VALUE assignments, one per line. Blank lines,
// # comments and lines without "=" are skipped and an "export " prefix is
// accepted. Single quotes keep a value literal. Double-quoted and unquoted
// values expand ${VAR} from earlier entries or the environment, and
// unquoted values end at " #".
func parseDotEnv(r io.Reader) ([]dotEnvEntry, error) {
	var entries []dotEnvEntry
	seen := map[string]string{}
	lookup := func(name string) string {
		if v, ok := seen[name]; ok {
			return v
		}
		return os.Getenv(name)
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, raw, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}

		value, literal := dotEnvValue(strings.TrimSpace(raw))
		if !literal {
			value = os.Expand(value, lookup)
		}
		seen[key] = value
		entries = append(entries, dotEnvEntry{key: key, value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// dotEnvValue strips matching quotes. literal reports a single-quoted value.
func dotEnvValue(v string) (value string, literal bool) {
	if len(v) >= 2 {
		switch q := v[0]; {
		case q == '\'' && v[len(v)-1] == '\'':
			return v[1 : len(v)-1], true
		case q == '"' && v[len(v)-1] == '"':
			return v[1 : len(v)-1], false
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v, false
}

// loadDotEnv sets each variable in path that the environment leaves empty
// and returns how many it set. A missing file sets nothing.
func loadDotEnv(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	entries, err := parseDotEnv(f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	set := 0
	for _, e := range entries {
		if os.Getenv(e.key) != "" {
			continue
		}
		if err := os.Setenv(e.key, e.value); err != nil {
			return set, fmt.Errorf("set %s: %w", e.key, err)
		}
		set++
	}
	return set, nil
}
