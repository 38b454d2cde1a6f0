package reconcile

import (
	"encoding/json"

	"github.com/spellgate/spellgate/internal/azuredevops"
	"github.com/spellgate/spellgate/internal/codespell"
)

// SuggestionPropertyKey is the thread property under which the engine embeds
// the finding a suggestion thread was opened for. Its presence marks a thread
// as engine-owned.
const SuggestionPropertyKey = "spellgate.suggestion"

// EncodeFinding serializes a finding for embedding into a thread property.
func EncodeFinding(f codespell.Finding) (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EmbeddedFinding extracts the finding embedded in a suggestion thread.
// Returns false for threads without the property and for payloads that do not
// decode into a usable finding; such threads are treated as foreign and never
// touched.
func EmbeddedFinding(thread azuredevops.Thread) (codespell.Finding, bool) {
	raw, ok := thread.Properties.StringValue(SuggestionPropertyKey)
	if !ok {
		return codespell.Finding{}, false
	}

	var f codespell.Finding
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return codespell.Finding{}, false
	}
	if f.Path == "" || f.Word == "" || f.Line <= 0 {
		return codespell.Finding{}, false
	}
	return f, true
}
