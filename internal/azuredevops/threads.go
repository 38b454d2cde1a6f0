package azuredevops

import "fmt"

// threadsService implements the ThreadsService interface.
type threadsService struct {
	*service
}

// List returns every comment thread of the pull request, deleted ones included.
func (ts *threadsService) List(prID int) ([]Thread, error) {
	path := fmt.Sprintf("%s/pullRequests/%d/threads", ts.client.repositoryURL(), prID)
	ts.client.Logger.Debug("listing pull request threads", "id", prID)

	response, err := ts.client.get(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing threads: %w", err)
	}

	var result struct {
		Value []Thread `json:"value"`
	}
	if err := unmarshalResponse(response, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Create opens a new thread on the pull request.
func (ts *threadsService) Create(prID int, thread NewThread) (*Thread, error) {
	path := fmt.Sprintf("%s/pullRequests/%d/threads", ts.client.repositoryURL(), prID)
	ts.client.Logger.Debug("creating pull request thread", "id", prID, "file", threadFile(thread))

	response, err := ts.client.post(path, thread)
	if err != nil {
		return nil, fmt.Errorf("error creating thread: %w", err)
	}

	var result Thread
	if err := unmarshalResponse(response, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetStatus transitions the thread to the given lifecycle state.
func (ts *threadsService) SetStatus(prID, threadID int, status ThreadStatus) error {
	path := fmt.Sprintf("%s/pullRequests/%d/threads/%d", ts.client.repositoryURL(), prID, threadID)
	ts.client.Logger.Debug("updating thread status", "id", prID, "thread", threadID, "status", status)

	response, err := ts.client.patch(path, map[string]interface{}{"status": status})
	if err != nil {
		return fmt.Errorf("error updating thread status: %w", err)
	}
	return checkResponse(response)
}

// LikeComment reacts to a specific comment with the authenticated identity.
func (ts *threadsService) LikeComment(prID, threadID, commentID int) error {
	path := fmt.Sprintf("%s/pullRequests/%d/threads/%d/comments/%d/likes",
		ts.client.repositoryURL(), prID, threadID, commentID)
	ts.client.Logger.Debug("liking comment", "id", prID, "thread", threadID, "comment", commentID)

	response, err := ts.client.post(path, nil)
	if err != nil {
		return fmt.Errorf("error liking comment: %w", err)
	}
	return checkResponse(response)
}

func threadFile(thread NewThread) string {
	if thread.ThreadContext == nil {
		return ""
	}
	return thread.ThreadContext.FilePath
}
