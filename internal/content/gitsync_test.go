package content

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initSourceRepo creates a local git repository with one committed word file
// and returns its path and worktree for further commits.
func initSourceRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	commitFile(t, worktree, dir, "alpha.json", `{"collocations": ["a b"]}`)
	return dir, worktree
}

func commitFile(t *testing.T, worktree *git.Worktree, dir, name, payload string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(payload), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		t.Fatalf("Add %s: %v", name, err)
	}
	_, err := worktree.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit %s: %v", name, err)
	}
}

func TestSyncRepoClonesAndPulls(t *testing.T) {
	srcDir, worktree := initSourceRepo(t)
	destDir := filepath.Join(t.TempDir(), "content")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// First sync clones.
	if err := SyncRepo(srcDir, destDir, log); err != nil {
		t.Fatalf("SyncRepo (clone): %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "alpha.json")); err != nil {
		t.Fatalf("cloned file missing: %v", err)
	}

	// Second sync with nothing new is a no-op pull.
	if err := SyncRepo(srcDir, destDir, log); err != nil {
		t.Fatalf("SyncRepo (up to date): %v", err)
	}

	// A new upstream commit arrives with the next sync.
	commitFile(t, worktree, srcDir, "beta.json", `{"collocations": ["c d"]}`)
	if err := SyncRepo(srcDir, destDir, log); err != nil {
		t.Fatalf("SyncRepo (pull): %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "beta.json")); err != nil {
		t.Errorf("pulled file missing: %v", err)
	}
}

func TestSyncRepoBadURL(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "content")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := SyncRepo(filepath.Join(t.TempDir(), "does-not-exist"), destDir, log); err == nil {
		t.Error("SyncRepo should fail for a missing source")
	}
}
