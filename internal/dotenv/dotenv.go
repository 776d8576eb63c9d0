// Package dotenv loads local development configuration from .env files
// so the binaries can run without exporting secrets in the shell.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load loads ".env" from the working directory. A missing file is not
// an error.
func Load() error {
	return LoadFile(".env")
}

// LoadFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win over file values.
func LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open env file %q: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("set env %q from %q: %w", key, path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan env file %q: %w", path, err)
	}
	return nil
}

// parseLine extracts a KEY=VALUE assignment. Blank lines, comments and
// malformed lines report ok=false. An optional "export " prefix and
// single or double quotes around the value are stripped.
func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	for _, quote := range []string{`"`, "'"} {
		if len(val) >= 2 && strings.HasPrefix(val, quote) && strings.HasSuffix(val, quote) {
			val = val[1 : len(val)-1]
			break
		}
	}
	return key, val, true
}
