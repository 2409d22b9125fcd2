package config

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.cfg")
	if err := os.WriteFile(path, []byte(contents), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadDefaults(t *testing.T) {
	run, err := Read(write(t, "[run]\nCoefficients = beta.txt\nCells = 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if run.Ranks != 1 || run.LatticeConstant != 2.0 || run.Seed != 1 {
		t.Errorf("defaults not applied: %+v", run)
	}
	if run.Coefficients != "beta.txt" || run.Cells != 3 {
		t.Errorf("required fields not read: %+v", run)
	}
}

func TestReadExample(t *testing.T) {
	run, err := Read(write(t, Example()))
	if err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if run.Ranks != 2 || run.Cells != 4 || run.Jitter != 0.1 {
		t.Errorf("example config misread: %+v", run)
	}
}

func TestReadRejects(t *testing.T) {
	table := []string{
		"[run]\nCells = 3\n",                                // no coefficients
		"[run]\nCoefficients = beta.txt\n",                  // no cells
		"[run]\nCoefficients = b\nCells = -1\n",             // bad cells
		"[run]\nCoefficients = b\nCells = 3\nRanks = 0\n",   // bad ranks
		"[run]\nCoefficients = b\nCells = 3\nJitter = -1\n", // bad jitter
		"[run]\nCoefficients = b\nCells = 3\nLatticeConstant = 0\n",
		"not a config at all",
	}

	for i, contents := range table {
		if _, err := Read(write(t, contents)); err == nil {
			t.Errorf("%d) config accepted: %q", i, contents)
		}
	}
}
