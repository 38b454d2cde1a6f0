// Package azuredevops is a thin gateway over the Azure DevOps Git REST API,
// exposing only the operations the reconciliation run consumes.
package azuredevops

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/spellgate/spellgate/pkg/shared/config"
	"github.com/spellgate/spellgate/pkg/shared/httpclient"
)

const apiVersion = "7.0"

// service wraps a client to access different services.
type service struct {
	client *Client
}

// Client configures and manages access to the API, holding service implementations and an HTTP client.
type Client struct {
	HTTPClient    *httpclient.Client
	CollectionURL string
	Project       string
	Repository    string
	Logger        hclog.Logger

	PullRequests PullRequestsService
	Threads      ThreadsService
	Pushes       PushesService
	Properties   PropertiesService
	Identity     IdentityService
}

// PullRequestsService defines the interface for pull request metadata operations.
type PullRequestsService interface {
	Get(id int) (*PullRequest, error)
	ListChangedPaths(id int) ([]string, error)
}

// ThreadsService defines the interface for review comment thread operations.
type ThreadsService interface {
	List(prID int) ([]Thread, error)
	Create(prID int, thread NewThread) (*Thread, error)
	SetStatus(prID, threadID int, status ThreadStatus) error
	LikeComment(prID, threadID, commentID int) error
}

// PushesService defines the interface for creating commits on the repository.
type PushesService interface {
	Create(push NewPush) (*Push, error)
}

// PropertiesService defines the interface for the per-pull-request property store.
type PropertiesService interface {
	Get(prID int, key string) (string, bool, error)
	Set(prID int, key, value string) error
	Delete(prID int, key string) error
}

// IdentityService resolves the identity of the authenticated caller.
type IdentityService interface {
	AuthenticatedUserID() (string, error)
}

// AuthInfo holds authentication details for the collection.
type AuthInfo struct {
	Token string // OAuth job token or personal access token
}

// New initializes a new API client with configured services.
func New(globalConfig *config.Config, logger hclog.Logger, collectionURL, project, repository string, auth AuthInfo) (*Client, error) {
	httpClient, err := httpclient.New(logger, globalConfig)
	if err != nil {
		logger.Error("failed to initialize HTTP client", "error", err)
		return nil, err
	}

	httpClient.RestyClient.SetAuthToken(auth.Token)

	client := &Client{
		HTTPClient:    httpClient,
		CollectionURL: strings.TrimRight(collectionURL, "/"),
		Project:       project,
		Repository:    repository,
		Logger:        logger,
	}

	client.PullRequests = &pullRequestsService{service: &service{client}}
	client.Threads = &threadsService{service: &service{client}}
	client.Pushes = &pushesService{service: &service{client}}
	client.Properties = &propertiesService{service: &service{client}}
	client.Identity = &identityService{service: &service{client}}

	return client, nil
}

// repositoryURL builds the base URL of the repository's git API.
func (c *Client) repositoryURL() string {
	return fmt.Sprintf("%s/%s/_apis/git/repositories/%s",
		c.CollectionURL, url.PathEscape(c.Project), url.PathEscape(c.Repository))
}

// headersBuilder returns a common request builder with the necessary headers.
func (c *Client) headersBuilder() *resty.Request {
	return c.HTTPClient.RestyClient.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetQueryParam("api-version", apiVersion)
}

// get sends a GET request using the path and query parameters provided.
func (c *Client) get(fullURL string, queryParams map[string]string) (*resty.Response, error) {
	return c.headersBuilder().
		SetQueryParams(queryParams).
		Get(fullURL)
}

// post sends a POST request using the path and body provided.
func (c *Client) post(fullURL string, body interface{}) (*resty.Response, error) {
	return c.headersBuilder().
		SetBody(body).
		Post(fullURL)
}

// patch sends a PATCH request using the path and body provided.
func (c *Client) patch(fullURL string, body interface{}) (*resty.Response, error) {
	return c.headersBuilder().
		SetBody(body).
		Patch(fullURL)
}

// patchJSONPatch sends a PATCH request carrying a JSON-Patch document.
func (c *Client) patchJSONPatch(fullURL string, ops []jsonPatchOperation) (*resty.Response, error) {
	return c.HTTPClient.RestyClient.R().
		SetHeader("Content-Type", "application/json-patch+json").
		SetHeader("Accept", "application/json").
		SetQueryParam("api-version", apiVersion).
		SetBody(ops).
		Patch(fullURL)
}

// jsonPatchOperation is a single JSON-Patch document entry.
type jsonPatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// apiError is the error envelope the platform returns on failures.
type apiError struct {
	Message string `json:"message"`
	TypeKey string `json:"typeKey"`
}

// unmarshalResponse is a generic function to parse JSON body from response into the provided type.
// It also checks the HTTP response code and API error messages.
func unmarshalResponse[T any](resp *resty.Response, out *T) error {
	if err := checkResponse(resp); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// checkResponse validates the HTTP status code and decodes the API error envelope.
func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() < 400 {
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("API request failed with status code %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return fmt.Errorf("API request failed with status code %d and response: %s", resp.StatusCode(), resp.String())
}
