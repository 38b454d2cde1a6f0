package azuredevops

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyBagStringValueWrapped(t *testing.T) {
	raw := `{"spellgate.suggestion":{"$type":"System.String","$value":"payload"}}`

	var bag PropertyBag
	require.NoError(t, json.Unmarshal([]byte(raw), &bag))

	value, ok := bag.StringValue("spellgate.suggestion")
	assert.True(t, ok)
	assert.Equal(t, "payload", value)
}

func TestPropertyBagStringValuePlain(t *testing.T) {
	bag := PropertyBag{"key": "plain"}

	value, ok := bag.StringValue("key")
	assert.True(t, ok)
	assert.Equal(t, "plain", value)
}

func TestPropertyBagStringValueMissing(t *testing.T) {
	bag := PropertyBag{}

	_, ok := bag.StringValue("absent")
	assert.False(t, ok)
}

func TestStringPropertiesRoundTrip(t *testing.T) {
	bag := StringProperties(map[string]string{"a": "1"})

	data, err := json.Marshal(bag)
	require.NoError(t, err)

	var decoded PropertyBag
	require.NoError(t, json.Unmarshal(data, &decoded))

	value, ok := decoded.StringValue("a")
	assert.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestCommentLikedBy(t *testing.T) {
	c := Comment{UsersLiked: []IdentityRef{{ID: "bot"}}}
	assert.True(t, c.LikedBy("bot"))
	assert.False(t, c.LikedBy("human"))
}

func TestThreadHasCommentBy(t *testing.T) {
	th := Thread{Comments: []Comment{{Author: IdentityRef{ID: "bot"}}}}
	assert.True(t, th.HasCommentBy("bot"))
	assert.False(t, th.HasCommentBy("human"))
}

func TestIsAddOrEdit(t *testing.T) {
	assert.True(t, isAddOrEdit("add"))
	assert.True(t, isAddOrEdit("edit"))
	assert.True(t, isAddOrEdit("edit, rename"))
	assert.False(t, isAddOrEdit("delete"))
	assert.False(t, isAddOrEdit("rename"))
}

func TestPlatformPath(t *testing.T) {
	assert.Equal(t, "/doc.txt", platformPath("doc.txt"))
	assert.Equal(t, "/a/b.txt", platformPath("a\\b.txt"))
	assert.Equal(t, "/doc.txt", platformPath("/doc.txt"))
}
