package mission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/prompt"
	"llmrpg/internal/store"
)

func TestShouldGenerate_MissionFlagForces(t *testing.T) {
	assert.True(t, ShouldGenerate(true, 1, 1, 5, false))
}

func TestShouldGenerate_CadenceReached(t *testing.T) {
	assert.True(t, ShouldGenerate(false, 10, 5, 5, false))
	assert.False(t, ShouldGenerate(false, 8, 5, 5, false))
}

func TestShouldGenerate_BlockedStorylineNeverFires(t *testing.T) {
	assert.False(t, ShouldGenerate(true, 100, 0, 5, true))
}

func TestEvaluate_FirstSatisfiedPathWins(t *testing.T) {
	player := &store.Player{
		Inventory: []store.InventoryItem{{Name: "rope", Quantity: 2}},
		Currency:  50,
		Location:  "docks",
		Network:   map[string]int{"Harlan": 10},
	}
	m := &Mission{
		Paths: []Path{
			{Name: "bribe", Requirements: Requirements{CurrencyDelta: 100}},
			{Name: "trade rope", Requirements: Requirements{Items: []ItemRequirement{{Name: "rope", Qty: 1}}}},
			{Name: "befriend", Requirements: Requirements{Relationships: []RelationshipRequirement{{NPC: "Harlan", MinLevel: 5}}}},
		},
	}

	idx, results := Evaluate(m, player)

	require.Len(t, results, 3)
	assert.Equal(t, 1, idx)
	assert.False(t, results[0].Completed)
	assert.NotEmpty(t, results[0].MissingRequirements)
	assert.True(t, results[1].Completed)
	assert.True(t, results[2].Completed) // also satisfied, but path 1 already won
}

func TestEvaluate_NoneSatisfied(t *testing.T) {
	player := &store.Player{Currency: 0}
	m := &Mission{Paths: []Path{{Name: "pay", Requirements: Requirements{CurrencyDelta: 10}}}}
	idx, results := Evaluate(m, player)
	assert.Equal(t, -1, idx)
	assert.False(t, results[0].Completed)
	assert.Contains(t, results[0].MissingRequirements[0], "currency")
}

func TestApplyCompletion_DeductsRequirementsCreditsRewards(t *testing.T) {
	player := &store.Player{
		Inventory: []store.InventoryItem{{Name: "rope", Quantity: 2}},
		Currency:  10,
		Network:   map[string]int{},
	}
	path := Path{
		Requirements: Requirements{Items: []ItemRequirement{{Name: "rope", Qty: 2}}},
		Rewards: Requirements{
			Items:         []ItemRequirement{{Name: "gold ring", Qty: 1}},
			CurrencyDelta: 25,
			Relationships: []RelationshipRequirement{{NPC: "Harlan", MinLevel: 10}},
		},
	}

	ApplyCompletion(player, store.ItemsCatalog{}, path)

	require.Len(t, player.Inventory, 1) // rope fully consumed and removed, gold ring added
	assert.Equal(t, "gold ring", player.Inventory[0].Name)
	assert.Equal(t, 35, player.Currency)
	assert.Equal(t, 10, player.Network["Harlan"])
}

func TestApplyCompletion_RelationshipClampedTo100(t *testing.T) {
	player := &store.Player{Network: map[string]int{"Harlan": 95}}
	path := Path{Rewards: Requirements{Relationships: []RelationshipRequirement{{NPC: "Harlan", MinLevel: 20}}}}
	ApplyCompletion(player, store.ItemsCatalog{}, path)
	assert.Equal(t, 100, player.Network["Harlan"])
}

func TestGenerate_ParsesJSONReply(t *testing.T) {
	fake := &llmclient.Fake{Replies: []string{
		`Sure, here you go: {"title":"The Missing Ledger","type":"side","description":"Find it.","paths":[{"name":"search","requirements":{},"rewards":{"currencyDelta":5}}]}`,
	}}
	eng := New(fake)

	m, err := eng.Generate(context.Background(), prompt.Input{}, llmclient.DefaultOptions("test-model"))

	require.NoError(t, err)
	assert.Equal(t, "The Missing Ledger", m.Title)
	assert.Equal(t, TypeSide, m.Type)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, StatusActive, m.Status)
	require.Len(t, m.Paths, 1)
	assert.Equal(t, 5, m.Paths[0].Rewards.CurrencyDelta)
}
