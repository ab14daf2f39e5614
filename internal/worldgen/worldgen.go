// Package worldgen implements the Task Manager's "LLM world-JSON
// generation" step (spec §4.10): turns extracted document text into the
// four world documents (lore, player, items, scenes). Grounded on
// internal/mission.Engine.Generate's same request-a-JSON-object,
// trim-and-unmarshal pattern, generalized from a single mission object to
// the full world-document bundle.
package worldgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/store"
)

// Generator turns document text into a store.Bundle via an LLM call.
type Generator struct {
	llm  llmclient.Adapter
	opts llmclient.Options
}

// New builds a Generator backed by llm, using opts for every call.
func New(llm llmclient.Adapter, opts llmclient.Options) *Generator {
	return &Generator{llm: llm, opts: opts}
}

const systemPrompt = `You convert a source document into a text-adventure world definition.
Respond ONLY with a single JSON object of this exact shape:
{
  "lore": {"title": string, "background": [string], "eraLabel": string, "timePeriod": string,
    "keyedEvents": [{"year": int, "title": string, "description": string}],
    "currentGameTime": {"year": int, "monthIndex": int, "dayIndex": int, "hourIndex": int},
    "eras": [{"title": string, "yearStart": int, "yearEnd": int, "description": string,
      "statsGrowth": {string: int}, "currencyBonus": int}],
    "currentEraIndex": int},
  "player": {"profile": {"name": string, "age": int, "gender": string},
    "attributes": {string: {"value": int, "cap": int}},
    "inventory": [{"id": string, "name": string, "description": string, "quantity": int, "value": int}],
    "currency": int, "location": string, "unlockedScenes": [string], "network": {string: int}},
  "items": {itemId: {"name": string, "description": string, "effects": [{"attribute": string, "delta": int}]}},
  "scenes": {sceneId: {"name": string, "description": string,
    "npcs": [{"id": string, "name": string, "age": int, "gender": string, "job": string, "description": string}],
    "buildings": [{"id": string, "name": string, "type": string, "description": string,
      "features": [{"id": string, "name": string, "description": string}]}]}}
}
Derive at least one era, one scene, and a starting location consistent with the source text. player.location must be a key of scenes.`

type generatedWorld struct {
	Lore   store.Lore         `json:"lore"`
	Player store.Player       `json:"player"`
	Items  store.ItemsCatalog `json:"items"`
	Scenes store.Scenes       `json:"scenes"`
}

// Generate produces the four world documents from extractedText.
func (g *Generator) Generate(ctx context.Context, extractedText string) (*store.Bundle, error) {
	messages := []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: extractedText},
	}
	reply, err := g.llm.Complete(ctx, messages, g.opts)
	if err != nil {
		return nil, fmt.Errorf("world generation LLM call failed: %w", err)
	}

	var gen generatedWorld
	if err := json.Unmarshal([]byte(extractJSON(reply)), &gen); err != nil {
		return nil, fmt.Errorf("world generation produced invalid JSON: %w", err)
	}
	if gen.Items == nil {
		gen.Items = store.ItemsCatalog{}
	}
	if gen.Scenes == nil {
		gen.Scenes = store.Scenes{}
	}

	return &store.Bundle{Lore: &gen.Lore, Player: &gen.Player, Items: gen.Items, Scenes: gen.Scenes}, nil
}

// extractJSON trims any leading/trailing prose the model added around the
// JSON object, taking the substring between the first '{' and the last '}'.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
