//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision is the checked-out git state of a source tree.
type Revision struct {
	// Commit is the full hash of HEAD.
	Commit string
	// Branch is the short branch name, empty for a detached HEAD.
	Branch string
}

// DetectRevision reads HEAD of the git work tree containing path.
// A tree outside git, or a repository without commits, yields a nil revision and no error.
func DetectRevision(path string) (*Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil //nolint:nilnil // Absence of a repository is not an error.
	}

	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil //nolint:nilnil // Empty repository.
	}

	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := &Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	return rev, nil
}
