package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		collection string
		project    string
		repository string
		ok         bool
	}{
		{
			name:       "hosted https",
			raw:        "https://dev.azure.com/contoso/docs/_git/handbook",
			collection: "https://dev.azure.com/contoso",
			project:    "docs",
			repository: "handbook",
			ok:         true,
		},
		{
			name:       "https with credential in authority",
			raw:        "https://contoso@dev.azure.com/contoso/docs/_git/handbook",
			collection: "https://dev.azure.com/contoso",
			project:    "docs",
			repository: "handbook",
			ok:         true,
		},
		{
			name:       "on-premises collection",
			raw:        "https://tfs.example.com/DefaultCollection/docs/_git/handbook.git",
			collection: "https://tfs.example.com/DefaultCollection",
			project:    "docs",
			repository: "handbook",
			ok:         true,
		},
		{
			name:       "ssh v3",
			raw:        "ssh://git@ssh.dev.azure.com/v3/contoso/docs/handbook",
			collection: "https://dev.azure.com/contoso",
			project:    "docs",
			repository: "handbook",
			ok:         true,
		},
		{
			name: "foreign https remote",
			raw:  "https://github.com/contoso/handbook.git",
			ok:   false,
		},
		{
			name: "git marker without enough segments",
			raw:  "https://dev.azure.com/_git/handbook",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collection, project, repository, ok := parseRemoteURL(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.project, project)
			assert.Equal(t, tt.repository, repository)
		})
	}
}

func TestMatchesTip(t *testing.T) {
	md := &Metadata{Commit: "AB12cd34"}
	assert.True(t, md.MatchesTip("ab12CD34"))
	assert.False(t, md.MatchesTip("ffffffff"))
	assert.False(t, md.MatchesTip(""))
}
