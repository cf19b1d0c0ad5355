package manifest

import (
	"fmt"
	"os/exec"
	"strings"
)

// gitClone clones a git repository to dest.
func gitClone(url, dest string) error {
	cmd := exec.Command("git", "clone", "--quiet", url, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %s: %w", url, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// gitCheckout checks out a specific ref (tag, branch, or commit) in a repo.
func gitCheckout(dir, ref string) error {
	cmd := exec.Command("git", "checkout", "--quiet", ref)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s in %s: %s: %w", ref, dir, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// gitFetch fetches updates from the remote.
func gitFetch(dir string) error {
	cmd := exec.Command("git", "fetch", "--quiet", "--all", "--tags")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git fetch in %s: %s: %w", dir, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// gitHasRef reports whether ref names a commit in the local clone.
func gitHasRef(dir, ref string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	cmd.Dir = dir
	return cmd.Run() == nil
}
