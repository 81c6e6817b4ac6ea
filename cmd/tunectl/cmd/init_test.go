package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halvard/tunectl/internal/catalog"
)

func TestInitCreatesValidCatalog(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "tunectl.yaml")

	// Override the global catalogPath used by the init command.
	old := catalogPath
	catalogPath = outPath
	defer func() { catalogPath = old }()

	initForce = false
	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	// The scaffold must parse and validate as-is.
	cat, err := catalog.Load(outPath)
	if err != nil {
		t.Fatalf("scaffold does not load: %v", err)
	}
	if len(cat.Settings) == 0 {
		t.Fatal("scaffold has no settings")
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "tunectl.yaml")

	if err := os.WriteFile(outPath, []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}

	old := catalogPath
	catalogPath = outPath
	defer func() { catalogPath = old }()

	initForce = false
	err := initCmd.RunE(initCmd, nil)
	if err == nil {
		t.Fatal("expected error when file exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error should mention 'already exists': %v", err)
	}
}

func TestInitForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "tunectl.yaml")

	if err := os.WriteFile(outPath, []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}

	old := catalogPath
	catalogPath = outPath
	defer func() { catalogPath = old }()

	initForce = true
	defer func() { initForce = false }()
	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("init --force: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "existing" {
		t.Fatal("file was not overwritten")
	}
}
