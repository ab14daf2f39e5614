package worldgen_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/worldgen"
)

const sampleReply = `Here is the world:
{
  "lore": {"title": "The Drowned Coast", "background": ["Tides reclaimed the lowlands."],
    "currentGameTime": {"year": 1200, "monthIndex": 0, "dayIndex": 0, "hourIndex": 0},
    "eras": [{"title": "The Flooding", "yearStart": 1200, "yearEnd": 1250, "description": "Waters rise."}],
    "currentEraIndex": 0},
  "player": {"profile": {"name": "Ash", "age": 19, "gender": "nonbinary"},
    "attributes": {"strength": {"value": 5}}, "inventory": [], "currency": 10,
    "location": "harbor", "unlockedScenes": ["harbor"], "network": {}},
  "items": {},
  "scenes": {"harbor": {"name": "The Harbor", "description": "Salt-stained docks."}}
}
That's the generated world.`

func TestGenerate_ParsesEmbeddedJSON(t *testing.T) {
	fake := &llmclient.Fake{Replies: []string{sampleReply}}
	g := worldgen.New(fake, llmclient.DefaultOptions("test-model"))

	bundle, err := g.Generate(context.Background(), "some source document text")
	require.NoError(t, err)

	assert.Equal(t, "The Drowned Coast", bundle.Lore.Title)
	assert.Equal(t, "Ash", bundle.Player.Profile.Name)
	assert.Equal(t, "harbor", bundle.Player.Location)
	assert.Contains(t, bundle.Scenes, "harbor")
	assert.NotNil(t, bundle.Items)
}

func TestGenerate_InvalidJSONFails(t *testing.T) {
	fake := &llmclient.Fake{Replies: []string{"not json at all"}}
	g := worldgen.New(fake, llmclient.DefaultOptions("test-model"))

	_, err := g.Generate(context.Background(), "text")
	assert.Error(t, err)
}

func TestGenerate_LLMFailurePropagates(t *testing.T) {
	fake := &llmclient.Fake{CompleteErr: assertErr{}}
	g := worldgen.New(fake, llmclient.DefaultOptions("test-model"))

	_, err := g.Generate(context.Background(), "text")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
