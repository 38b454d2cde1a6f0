package azuredevops

import "fmt"

// propertiesService implements the PropertiesService interface over the
// pull-request property store.
type propertiesService struct {
	*service
}

func (ps *propertiesService) propertiesURL(prID int) string {
	return fmt.Sprintf("%s/pullRequests/%d/properties", ps.client.repositoryURL(), prID)
}

// Get reads a single string property, reporting whether it exists.
func (ps *propertiesService) Get(prID int, key string) (string, bool, error) {
	response, err := ps.client.get(ps.propertiesURL(prID), nil)
	if err != nil {
		return "", false, fmt.Errorf("error fetching pull request properties: %w", err)
	}

	var result struct {
		Count int                      `json:"count"`
		Value map[string]propertyValue `json:"value"`
	}
	if err := unmarshalResponse(response, &result); err != nil {
		return "", false, err
	}

	pv, ok := result.Value[key]
	if !ok {
		return "", false, nil
	}
	s, ok := pv.Value.(string)
	if !ok {
		return fmt.Sprintf("%v", pv.Value), true, nil
	}
	return s, true, nil
}

// Set stores a string property on the pull request.
func (ps *propertiesService) Set(prID int, key, value string) error {
	ops := []jsonPatchOperation{
		{Op: "add", Path: "/" + key, Value: value},
	}
	response, err := ps.client.patchJSONPatch(ps.propertiesURL(prID), ops)
	if err != nil {
		return fmt.Errorf("error setting pull request property %q: %w", key, err)
	}
	return checkResponse(response)
}

// Delete removes a property from the pull request.
func (ps *propertiesService) Delete(prID int, key string) error {
	ops := []jsonPatchOperation{
		{Op: "remove", Path: "/" + key},
	}
	response, err := ps.client.patchJSONPatch(ps.propertiesURL(prID), ops)
	if err != nil {
		return fmt.Errorf("error deleting pull request property %q: %w", key, err)
	}
	return checkResponse(response)
}
