// Package golden implements the on-disk fixture harness: it walks a
// directory pairing "<stem>.hissa" assembly sources with
// "<stem>.expected" output files, assembles and runs each, and reports
// any mismatch. This is the thin host adapter the assembler and
// machine packages are agnostic of; a CLI or test file drives it.
package golden

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joek13/hissvm/asm"
	"github.com/joek13/hissvm/machine"
	"github.com/joek13/hissvm/module"
)

// Case is one discovered hissa/expected pair.
type Case struct {
	Name      string
	HissaPath string
	Expected  string
}

// Discover walks dir for "*.hissa" files with a matching "*.expected"
// sibling, returning cases sorted by name.
func Discover(dir string) ([]Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("golden: reading %s: %w", dir, err)
	}

	var cases []Case
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".hissa") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".hissa")
		expectedPath := filepath.Join(dir, stem+".expected")
		expected, err := os.ReadFile(expectedPath)
		if err != nil {
			return nil, fmt.Errorf("golden: %s has no matching .expected file: %w", e.Name(), err)
		}
		cases = append(cases, Case{
			Name:      stem,
			HissaPath: filepath.Join(dir, e.Name()),
			Expected:  string(expected),
		})
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases, nil
}

// Run assembles and executes c's source, returning the program's
// trimmed print output.
func Run(c Case) (string, error) {
	src, err := os.ReadFile(c.HissaPath)
	if err != nil {
		return "", fmt.Errorf("golden: reading %s: %w", c.HissaPath, err)
	}

	a := asm.New(string(src))
	buf, err := a.ReadModule()
	if err != nil {
		return "", fmt.Errorf("golden: assembling %s: %w", c.HissaPath, err)
	}

	ld := module.NewLoader()
	mod, err := ld.Read(buf)
	if err != nil {
		return "", fmt.Errorf("golden: loading %s: %w", c.HissaPath, err)
	}

	m, err := machine.New(mod)
	if err != nil {
		return "", fmt.Errorf("golden: initializing machine for %s: %w", c.HissaPath, err)
	}

	var out bytes.Buffer
	for {
		halted, err := m.Step(&out)
		if err != nil {
			return "", fmt.Errorf("golden: running %s: %w", c.HissaPath, err)
		}
		if halted {
			break
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// Matches reports whether c's actual output, once whitespace-trimmed,
// equals its expected output.
func Matches(c Case, actual string) bool {
	return actual == strings.TrimSpace(c.Expected)
}
