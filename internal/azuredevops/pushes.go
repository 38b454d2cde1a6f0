package azuredevops

import (
	"fmt"
	"strings"
)

// pushesService implements the PushesService interface.
type pushesService struct {
	*service
}

// Create pushes a single commit containing the given file edits onto the
// branch. The platform rejects the push when OldObjectID no longer matches
// the branch tip, which is surfaced as an error rather than retried.
func (ps *pushesService) Create(push NewPush) (*Push, error) {
	if len(push.Edits) == 0 {
		return nil, fmt.Errorf("refusing to create an empty push")
	}

	changes := make([]map[string]interface{}, 0, len(push.Edits))
	for _, edit := range push.Edits {
		changes = append(changes, map[string]interface{}{
			"changeType": "edit",
			"item": map[string]string{
				"path": platformPath(edit.Path),
			},
			"newContent": map[string]string{
				"content":     edit.Content,
				"contentType": "rawtext",
			},
		})
	}

	body := map[string]interface{}{
		"refUpdates": []map[string]string{
			{
				"name":        push.RefName,
				"oldObjectId": push.OldObjectID,
			},
		},
		"commits": []map[string]interface{}{
			{
				"comment": push.Comment,
				"changes": changes,
			},
		},
	}

	path := ps.client.repositoryURL() + "/pushes"
	ps.client.Logger.Debug("creating push", "ref", push.RefName, "base", push.OldObjectID, "files", len(push.Edits))

	response, err := ps.client.post(path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating push: %w", err)
	}

	var result Push
	if err := unmarshalResponse(response, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// platformPath ensures the platform's leading-slash path convention.
func platformPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
