package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/character"
	"llmrpg/internal/llmclient"
	"llmrpg/internal/store"
)

func samplePlayer() *store.Player {
	return &store.Player{
		Profile:        character.NewProfile("Mira", 24, "female"),
		Attributes:     map[string]store.Attribute{"courage": {Value: 5}},
		Inventory:      []store.InventoryItem{{ID: "i1", Name: "lantern", Quantity: 1}},
		Currency:       10,
		Location:       "docks",
		UnlockedScenes: []string{"docks", "market"},
	}
}

func sampleScenes() store.Scenes {
	return store.Scenes{
		"docks": &store.Scene{
			Name:        "The Docks",
			Description: "Salt air and creaking rope.",
			NPCs:        []store.NPC{{ID: "n1", Name: "Old Harlan", Job: "fisherman", Description: "weathered"}},
			Buildings:   []store.Building{{ID: "b1", Name: "Harbor Office", Type: "office", Description: "paperwork and lanterns"}},
		},
	}
}

func TestBuildSystem_IncludesCoreContext(t *testing.T) {
	in := Input{
		Lore: &store.Lore{
			Title:           "Tidewrack",
			EraLabel:        "The Long Calm",
			CurrentGameTime: store.GameTime{Year: 3, MonthIndex: 1, DayIndex: 2, HourIndex: 8},
			Background:      []string{"A quiet coastal town."},
		},
		Player:         samplePlayer(),
		Scenes:         sampleScenes(),
		CurrentSceneID: "docks",
		Style:          StyleLiterary,
		PlayerName:     "Mira",
	}

	sys := BuildSystem(in)

	assert.Contains(t, sys, "Tidewrack")
	assert.Contains(t, sys, "The Long Calm")
	assert.Contains(t, sys, "Mira")
	assert.Contains(t, sys, "courage=5")
	assert.Contains(t, sys, "lantern x1")
	assert.Contains(t, sys, "The Docks")
	assert.Contains(t, sys, "Old Harlan")
	assert.Contains(t, sys, "Harbor Office")
	assert.Contains(t, sys, StyleLiterary.Directive())
	assert.Contains(t, sys, "[HINT:")
	assert.NotContains(t, sys, "[INIT]")
}

func TestBuildSystem_FirstTurnIncludesInitDirective(t *testing.T) {
	in := Input{Style: StyleCasual, IsFirstTurn: true}
	sys := BuildSystem(in)
	assert.Contains(t, sys, "[INIT]")
}

func TestBuildSystem_ActiveMissionsListed(t *testing.T) {
	in := Input{
		Style: StyleDramatic,
		ActiveMissions: []MissionObjective{
			{Title: "Find the ledger", Description: "Recover the harbor master's ledger.", PathNames: []string{"steal it", "buy it"}},
		},
	}
	sys := BuildSystem(in)
	assert.Contains(t, sys, "Find the ledger")
	assert.Contains(t, sys, "Recover the harbor master's ledger.")
	assert.Contains(t, sys, "steal it")
	assert.Contains(t, sys, "buy it")
}

func TestBuildMessages_OrderAndHistoryBound(t *testing.T) {
	history := []llmclient.Message{
		{Role: "user", Content: "look around"},
		{Role: "assistant", Content: "[NARRATION: the docks creak]"},
		{Role: "user", Content: "go to the office"},
		{Role: "assistant", Content: "[NARRATION: you enter]"},
	}
	in := Input{Style: StyleLiterary}

	msgs := BuildMessages(in, history, 2, "search the desk")

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, history[2], msgs[1])
	assert.Equal(t, history[3], msgs[2])
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, "search the desk", msgs[3].Content)
}

func TestBoundHistory_NoTruncationUnderCap(t *testing.T) {
	history := []llmclient.Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}
	out := BoundHistory(history, 40)
	assert.Equal(t, history, out)
}

func TestUseItemAction(t *testing.T) {
	assert.Equal(t, "我使用了lantern", UseItemAction("lantern"))
}

func TestBuildMissionPrompt_AsksForJSON(t *testing.T) {
	out := BuildMissionPrompt(Input{Style: StylePoetic})
	assert.True(t, strings.Contains(out, "JSON object"))
	assert.Contains(t, out, `"title"`)
}

func TestBuildNPCChatPrompt_NamesTheNPC(t *testing.T) {
	npc := store.NPC{Name: "Old Harlan", Job: "fisherman"}
	out := BuildNPCChatPrompt(Input{Style: StyleThriller, PlayerName: "Mira"}, npc)
	assert.Contains(t, out, "Old Harlan")
	assert.Contains(t, out, "fisherman")
	assert.Contains(t, out, "Mira")
}
