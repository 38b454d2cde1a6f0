package azuredevops

import (
	"fmt"
	"strings"
)

// pullRequestsService implements the PullRequestsService interface.
type pullRequestsService struct {
	*service
}

// Get retrieves a pull request by its ID.
func (prs *pullRequestsService) Get(id int) (*PullRequest, error) {
	path := fmt.Sprintf("%s/pullRequests/%d", prs.client.repositoryURL(), id)
	prs.client.Logger.Debug("fetching pull request information", "project", prs.client.Project, "repository", prs.client.Repository, "id", id)

	response, err := prs.client.get(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching pull request: %w", err)
	}

	var result PullRequest
	if err := unmarshalResponse(response, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListChangedPaths returns the file paths added or edited across all
// iterations of the pull request. Folders and deleted items are excluded so
// suggestion threads are never anchored to content that no longer exists.
func (prs *pullRequestsService) ListChangedPaths(id int) ([]string, error) {
	latest, err := prs.latestIteration(id)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/pullRequests/%d/iterations/%d/changes", prs.client.repositoryURL(), id, latest)
	response, err := prs.client.get(path, map[string]string{"$compareTo": "0"})
	if err != nil {
		return nil, fmt.Errorf("error fetching iteration changes: %w", err)
	}

	var result struct {
		ChangeEntries []ChangeEntry `json:"changeEntries"`
	}
	if err := unmarshalResponse(response, &result); err != nil {
		return nil, err
	}

	var paths []string
	for _, change := range result.ChangeEntries {
		if !isAddOrEdit(change.ChangeType) {
			continue
		}
		if change.Item.IsFolder || change.Item.GitObjectType == "tree" {
			continue
		}
		paths = append(paths, change.Item.Path)
	}

	prs.client.Logger.Debug("resolved changed paths", "id", id, "iteration", latest, "count", len(paths))
	return paths, nil
}

// latestIteration returns the highest iteration id of the pull request.
func (prs *pullRequestsService) latestIteration(id int) (int, error) {
	path := fmt.Sprintf("%s/pullRequests/%d/iterations", prs.client.repositoryURL(), id)
	response, err := prs.client.get(path, nil)
	if err != nil {
		return 0, fmt.Errorf("error fetching pull request iterations: %w", err)
	}

	var result struct {
		Value []struct {
			ID int `json:"id"`
		} `json:"value"`
	}
	if err := unmarshalResponse(response, &result); err != nil {
		return 0, err
	}
	if len(result.Value) == 0 {
		return 0, fmt.Errorf("pull request %d has no iterations", id)
	}

	latest := 0
	for _, it := range result.Value {
		if it.ID > latest {
			latest = it.ID
		}
	}
	return latest, nil
}

// isAddOrEdit reports whether a change type includes an add or edit. The
// platform emits compound types such as "edit, rename".
func isAddOrEdit(changeType string) bool {
	for _, part := range strings.Split(changeType, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "add", "edit":
			return true
		}
	}
	return false
}
