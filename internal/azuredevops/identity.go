package azuredevops

import "fmt"

// identityService resolves and caches the authenticated caller's identity.
// The id is fetched once per client instance and reused for the whole run.
type identityService struct {
	*service
	cachedID string
}

// AuthenticatedUserID returns the identity id of the authenticated caller.
func (is *identityService) AuthenticatedUserID() (string, error) {
	if is.cachedID != "" {
		return is.cachedID, nil
	}

	path := is.client.CollectionURL + "/_apis/connectionData"
	response, err := is.client.get(path, nil)
	if err != nil {
		return "", fmt.Errorf("error fetching connection data: %w", err)
	}

	var result struct {
		AuthenticatedUser IdentityRef `json:"authenticatedUser"`
	}
	if err := unmarshalResponse(response, &result); err != nil {
		return "", err
	}
	if result.AuthenticatedUser.ID == "" {
		return "", fmt.Errorf("connection data carries no authenticated user id")
	}

	is.cachedID = result.AuthenticatedUser.ID
	return is.cachedID, nil
}
