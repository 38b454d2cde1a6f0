package azuredevops

import "github.com/mitchellh/mapstructure"

// IdentityRef identifies a platform user.
type IdentityRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// CommitRef references a single commit.
type CommitRef struct {
	CommitID string `json:"commitId"`
}

// PullRequest carries the pull request metadata the run needs.
type PullRequest struct {
	PullRequestID         int       `json:"pullRequestId"`
	Status                string    `json:"status"`
	SourceRefName         string    `json:"sourceRefName"`
	TargetRefName         string    `json:"targetRefName"`
	LastMergeSourceCommit CommitRef `json:"lastMergeSourceCommit"`
}

// ThreadStatus is the lifecycle state of a review thread.
type ThreadStatus string

const (
	ThreadStatusActive ThreadStatus = "active"
	ThreadStatusFixed  ThreadStatus = "fixed"
	ThreadStatusClosed ThreadStatus = "closed"
)

// Position is a 1-based line and character offset inside a file.
type Position struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}

// ThreadContext anchors a thread to a file range on the right-hand side of the diff.
type ThreadContext struct {
	FilePath       string    `json:"filePath"`
	RightFileStart *Position `json:"rightFileStart,omitempty"`
	RightFileEnd   *Position `json:"rightFileEnd,omitempty"`
}

// Comment is a single comment within a thread.
type Comment struct {
	ID              int           `json:"id"`
	ParentCommentID int           `json:"parentCommentId,omitempty"`
	Author          IdentityRef   `json:"author"`
	Content         string        `json:"content"`
	CommentType     string        `json:"commentType,omitempty"`
	UsersLiked      []IdentityRef `json:"usersLiked,omitempty"`
}

// LikedBy reports whether the given identity has reacted to the comment.
func (c Comment) LikedBy(userID string) bool {
	for _, u := range c.UsersLiked {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// PropertyBag is the opaque string-keyed property collection the platform
// attaches to threads and pull requests. Values arrive as loose maps wrapping
// the payload in $type/$value pairs.
type PropertyBag map[string]interface{}

// propertyValue is the wire wrapper around a single property value.
type propertyValue struct {
	Type  string      `json:"$type" mapstructure:"$type"`
	Value interface{} `json:"$value" mapstructure:"$value"`
}

// StringValue extracts a string property from the bag, tolerating both the
// wrapped and the plain representation.
func (b PropertyBag) StringValue(key string) (string, bool) {
	raw, ok := b[key]
	if !ok || raw == nil {
		return "", false
	}

	if s, ok := raw.(string); ok {
		return s, true
	}

	var pv propertyValue
	if err := mapstructure.Decode(raw, &pv); err != nil {
		return "", false
	}
	if s, ok := pv.Value.(string); ok {
		return s, true
	}
	return "", false
}

// StringProperties builds a wire-ready property bag from plain string pairs.
func StringProperties(values map[string]string) PropertyBag {
	bag := PropertyBag{}
	for k, v := range values {
		bag[k] = propertyValue{Type: "System.String", Value: v}
	}
	return bag
}

// Thread is a platform-native anchored comment thread.
type Thread struct {
	ID            int            `json:"id"`
	Status        ThreadStatus   `json:"status"`
	IsDeleted     bool           `json:"isDeleted"`
	Comments      []Comment      `json:"comments"`
	ThreadContext *ThreadContext `json:"threadContext,omitempty"`
	Properties    PropertyBag    `json:"properties,omitempty"`
}

// HasCommentBy reports whether any comment in the thread was authored by the
// given identity.
func (t Thread) HasCommentBy(userID string) bool {
	for _, c := range t.Comments {
		if c.Author.ID == userID {
			return true
		}
	}
	return false
}

// NewComment is the creation payload for one comment.
type NewComment struct {
	ParentCommentID int    `json:"parentCommentId"`
	Content         string `json:"content"`
	CommentType     string `json:"commentType"`
}

// NewThread is the creation payload for a review thread.
type NewThread struct {
	Comments      []NewComment   `json:"comments"`
	Status        ThreadStatus   `json:"status"`
	ThreadContext *ThreadContext `json:"threadContext,omitempty"`
	Properties    PropertyBag    `json:"properties,omitempty"`
}

// ItemRef describes a changed item within an iteration.
type ItemRef struct {
	Path          string `json:"path"`
	IsFolder      bool   `json:"isFolder,omitempty"`
	GitObjectType string `json:"gitObjectType,omitempty"`
}

// ChangeEntry is one changed item of a pull request iteration.
type ChangeEntry struct {
	ChangeType string  `json:"changeType"`
	Item       ItemRef `json:"item"`
}

// FileEdit is one (path, new full content) pair of a push.
type FileEdit struct {
	Path    string
	Content string
}

// NewPush describes a single commit to create on a branch. OldObjectID pins
// the expected branch tip; a stale value makes the platform reject the push
// instead of silently overwriting concurrent work.
type NewPush struct {
	RefName     string
	OldObjectID string
	Comment     string
	Edits       []FileEdit
}

// Push is the creation result of a push.
type Push struct {
	PushID int `json:"pushId"`
}
