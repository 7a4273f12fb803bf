package content

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
)

// SyncRepo clones the content repository into localPath if it doesn't exist
// there yet, or pulls the latest changes if it does.
func SyncRepo(url, localPath string, log *slog.Logger) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		log.Info("cloning content repository", "url", url, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: url})
		if err != nil {
			return fmt.Errorf("failed to clone content repo %s: %w", url, err)
		}
		log.Info("clone complete", "path", localPath)

	case err == nil:
		log.Info("pulling content repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open content repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree at %s: %w", localPath, err)
		}
		err = worktree.Pull(&git.PullOptions{RemoteName: "origin"})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull content repo at %s: %w", localPath, err)
		}
		log.Info("pull complete", "path", localPath)

	default:
		return fmt.Errorf("error checking content path %s: %w", localPath, err)
	}

	return nil
}
