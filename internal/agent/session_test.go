package agent

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "multi_engineer_sessions")
	store := NewSessionStore(dir)

	path, err := store.Save("abcd1234", "po", "In main.go change Hey to Hello <b>")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "abcd1234_po.json") {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"session_id\": \"abcd1234\"") {
		t.Errorf("artifact should be indented JSON, got:\n%s", data)
	}
	if !strings.Contains(string(data), "<b>") {
		t.Error("HTML characters should not be escaped")
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4 || raw["status"] != "completed" || raw["agent_type"] != "po" {
		t.Errorf("unexpected artifact fields: %v", raw)
	}

	sess, err := store.Load("abcd1234", "po")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sess.Result != "In main.go change Hey to Hello <b>" || sess.Status != SessionCompleted {
		t.Errorf("loaded %+v", sess)
	}
}

func TestSessionStore_Overwrite(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	store.Save("s1", "engineer", "first")
	store.Save("s1", "engineer", "second")

	sess, err := store.Load("s1", "engineer")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Result != "second" {
		t.Errorf("Result = %q, want second", sess.Result)
	}
}

func TestSessionStore_LoadMissing(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	_, err := store.Load("nope", "po")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
