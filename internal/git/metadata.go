// Package git inspects the local checkout the pipeline agent prepared:
// the commit at HEAD, the checked-out branch, and the platform coordinates
// encoded in the origin remote URL.
package git

import (
	"fmt"
	"net/url"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/hashicorp/go-hclog"
)

// Metadata describes the local repository checkout.
type Metadata struct {
	// CollectionURL, Project and Repository are parsed from the origin
	// remote and serve as fallbacks when the pipeline environment does not
	// provide them.
	CollectionURL string
	Project       string
	Repository    string

	// Branch is the short name of the checked-out branch, empty on a
	// detached HEAD.
	Branch string
	// Commit is the hash at HEAD.
	Commit string
}

// MatchesTip reports whether the local checkout sits on the given commit.
func (m *Metadata) MatchesTip(commit string) bool {
	return commit != "" && strings.EqualFold(m.Commit, commit)
}

// CollectRepositoryMetadata opens the repository at dir and extracts checkout
// metadata. A missing or unparsable origin remote leaves the platform
// coordinates empty rather than failing: HEAD is the part a run cannot work
// without.
func CollectRepositoryMetadata(dir string, logger hclog.Logger) (*Metadata, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %q: %w", dir, err)
	}

	md := &Metadata{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		md.Branch = head.Name().Short()
	}

	remote, err := repo.Remote(gogit.DefaultRemoteName)
	if err != nil {
		logger.Debug("checkout has no origin remote", "dir", dir)
		return md, nil
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return md, nil
	}

	collection, project, repository, ok := parseRemoteURL(urls[0])
	if !ok {
		logger.Debug("origin remote is not a recognized collection URL", "url", urls[0])
		return md, nil
	}
	md.CollectionURL = collection
	md.Project = project
	md.Repository = repository
	return md, nil
}

// parseRemoteURL extracts (collection URL, project, repository) from an
// Azure DevOps style remote. Supported shapes:
//
//	https://dev.azure.com/org/project/_git/repo
//	https://user@server/collection/project/_git/repo
//	ssh://git@ssh.dev.azure.com/v3/org/project/repo
func parseRemoteURL(raw string) (collection, project, repository string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", false
	}

	path := strings.Trim(u.Path, "/")

	if u.Scheme == "ssh" {
		parts := strings.Split(path, "/")
		if len(parts) != 4 || parts[0] != "v3" {
			return "", "", "", false
		}
		host := strings.TrimPrefix(u.Hostname(), "ssh.")
		return "https://" + host + "/" + parts[1], parts[2], strings.TrimSuffix(parts[3], ".git"), true
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s != "_git" || i < 2 || i+1 >= len(segments) {
			continue
		}
		base := url.URL{Scheme: u.Scheme, Host: u.Host}
		prefix := strings.Join(segments[:i-1], "/")
		return base.String() + "/" + prefix, segments[i-1], strings.TrimSuffix(segments[i+1], ".git"), true
	}
	return "", "", "", false
}
