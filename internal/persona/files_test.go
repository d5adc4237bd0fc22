package persona

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "helper.toml"), `
name = "Helper"
description = "Answers questions."
tone = "professional"
creativity = "conservative"
formality = "formal"
`)
	writeFile(t, filepath.Join(dir, "literal.toml"), `
name = "Literal"
system_prompt = "Only answer in haiku."
`)
	writeFile(t, filepath.Join(dir, "broken.toml"), `name = "Broken"
tone = "grumpy"
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	ps, err := LoadDir(dir)
	if err == nil {
		t.Error("expected error for broken.toml")
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(ps))
	}
	helper, ok := ps["file_helper"]
	if !ok {
		t.Fatalf("file_helper missing: %v", ps)
	}
	if helper.Kind != KindCustom || helper.Tone != ToneProfessional {
		t.Errorf("helper: %+v", helper)
	}
	if ps["file_literal"].Prompt != "Only answer in haiku." {
		t.Errorf("literal prompt: %q", ps["file_literal"].Prompt)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	ps, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(ps) != 0 {
		t.Errorf("got %v, %v", ps, err)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	reg := NewRegistry(nil, "u1")
	w := NewWatcher(dir, reg, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitReload := func() {
		t.Helper()
		select {
		case <-w.reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reload")
		}
	}
	waitReload() // initial load

	writeFile(t, filepath.Join(dir, "helper.toml"), "name = \"Helper\"\n")

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := reg.Lookup(context.Background(), "file_helper"); ok {
			break
		}
		select {
		case <-w.reloaded:
		case <-deadline:
			t.Fatal("file persona never appeared")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
