package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestGodotenvQuoting(t *testing.T) {
	content := "CANONICAL_HOURS='0, 12'\nAUDIT_DB=\"audit db.sqlite\"\n"
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}
	if env["CANONICAL_HOURS"] != "0, 12" {
		t.Errorf("Expected %q, got %q", "0, 12", env["CANONICAL_HOURS"])
	}
	if env["AUDIT_DB"] != "audit db.sqlite" {
		t.Errorf("Expected %q, got %q", "audit db.sqlite", env["AUDIT_DB"])
	}

	hours, err := ParseHours(env["CANONICAL_HOURS"])
	if err != nil || len(hours) != 2 || hours[1] != 12 {
		t.Errorf("Expected [0 12], got %v (%v)", hours, err)
	}
}
