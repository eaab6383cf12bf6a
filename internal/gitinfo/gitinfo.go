// Package gitinfo reports the branch and commit a run analyzed.
package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when dir is not inside a git work tree and
// the CI environment names no branch.
var ErrNotRepository = errors.New("not a git repository")

// Info identifies the analyzed revision.
type Info struct {
	Branch string
	Commit string
	// Detached is set when HEAD does not point at a branch.
	Detached bool
}

// Getenv looks up environment variables. Tests replace it.
var Getenv = os.Getenv

// Detect resolves branch and commit for dir. GitHub Actions variables take
// precedence over the repository: GITHUB_HEAD_REF names the source branch
// of a pull request, GITHUB_REF_NAME the pushed branch, GITHUB_SHA the
// commit.
func Detect(dir string) (Info, error) {
	var info Info
	repoInfo, repoErr := fromRepo(dir)
	if repoErr == nil {
		info = repoInfo
	}

	if b := Getenv("GITHUB_HEAD_REF"); b != "" {
		info.Branch, info.Detached = b, false
	} else if b := Getenv("GITHUB_REF_NAME"); b != "" && Getenv("GITHUB_REF_TYPE") != "tag" {
		info.Branch, info.Detached = b, false
	}
	if sha := Getenv("GITHUB_SHA"); sha != "" {
		info.Commit = sha
	}

	if repoErr != nil && info.Branch == "" && info.Commit == "" {
		return Info{}, repoErr
	}
	return info, nil
}

func fromRepo(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, ErrNotRepository
		}
		return Info{}, fmt.Errorf("gitinfo.Detect: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Fresh repository without commits: HEAD names a branch that
			// does not exist yet.
			ref, rerr := repo.Reference(plumbing.HEAD, false)
			if rerr == nil && ref.Type() == plumbing.SymbolicReference {
				return Info{Branch: ref.Target().Short()}, nil
			}
		}
		return Info{}, fmt.Errorf("gitinfo.Detect: head: %w", err)
	}

	info := Info{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	} else {
		info.Detached = true
	}
	return info, nil
}

// ShortCommit abbreviates a commit hash to seven characters.
func ShortCommit(c string) string {
	c = strings.TrimSpace(c)
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
