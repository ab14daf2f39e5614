package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/parser"
)

func TestParseReply_NarrationDialogueChoice(t *testing.T) {
	reply := `[MISSION: false]
[NARRATION: The wind howls through Oakhaven Gate.]
Bob: "You shouldn't be out here."
[CHOICE: What do you do?]
You can press on or turn back.
[OPTION: Press on]
[OPTION: Turn back]
[END_CHOICE]`

	res := parser.ParseReply(reply)
	require.False(t, res.MissionFlag)
	require.Len(t, res.Steps, 3)

	assert.Equal(t, parser.StepNarration, res.Steps[0].Kind)
	assert.Equal(t, "The wind howls through Oakhaven Gate.", res.Steps[0].Text)

	assert.Equal(t, parser.StepDialogue, res.Steps[1].Kind)
	assert.Equal(t, "Bob", res.Steps[1].CharacterID)
	assert.Equal(t, "You shouldn't be out here.", res.Steps[1].Text)

	assert.Equal(t, parser.StepChoice, res.Steps[2].Kind)
	assert.Equal(t, "What do you do?", res.Steps[2].ChoiceTitle)
	assert.Equal(t, []string{"Press on", "Turn back"}, res.Steps[2].Options)
}

func TestParseReply_ChoiceWithZeroOptionsDiscarded(t *testing.T) {
	reply := `[CHOICE: Empty]
no options here
[END_CHOICE]
[NARRATION: after]`

	res := parser.ParseReply(reply)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, parser.StepNarration, res.Steps[0].Kind)
}

func TestParseReply_ItemAcquisition(t *testing.T) {
	reply := `[HINT: You find gold]
[CHANGE: gold, 获得, 5]`

	res := parser.ParseReply(reply)
	require.Len(t, res.Steps, 1)
	require.Len(t, res.Steps[0].Changes, 1)
	require.Len(t, res.Deltas.Items, 1)
	assert.Equal(t, "gold", res.Deltas.Items[0].Name)
	assert.Equal(t, parser.ItemAcquire, res.Deltas.Items[0].Action)
	assert.Equal(t, 5, res.Deltas.Items[0].Quantity)
}

func TestParseReply_RelationshipDelta(t *testing.T) {
	reply := `[HINT: Bob likes you more]
[CHANGE: RELATIONSHIP, Bob, +10]`

	res := parser.ParseReply(reply)
	assert.Equal(t, 10, res.Deltas.Relationships["Bob"])
}

func TestParseReply_AttributeDelta(t *testing.T) {
	reply := `[HINT: You feel stronger]
[CHANGE: player, strength, +2]
[CHANGE: player, strength, +1]`

	res := parser.ParseReply(reply)
	assert.Equal(t, 3, res.Deltas.Attributes["player.strength"])
}

func TestParseReply_ChangeOutsideHintIsDropped(t *testing.T) {
	reply := `[CHANGE: player, strength, +2]
[NARRATION: nothing changed]`

	res := parser.ParseReply(reply)
	require.Len(t, res.Steps, 1)
	assert.Empty(t, res.Deltas.Attributes)
}

func TestParseReply_UnmatchedLineBecomesNarration(t *testing.T) {
	res := parser.ParseReply("Something strange happens in the fog.")
	require.Len(t, res.Steps, 1)
	assert.Equal(t, parser.StepNarration, res.Steps[0].Kind)
}

func TestParseReply_MissionFlag(t *testing.T) {
	res := parser.ParseReply("[MISSION: true]\n[NARRATION: a new thread begins]")
	assert.True(t, res.MissionFlag)
	require.Len(t, res.Steps, 1)
}

func TestRoundTrip_SerializeThenParse(t *testing.T) {
	steps := []parser.Step{
		{Kind: parser.StepNarration, Text: "A cold wind blows."},
		{Kind: parser.StepDialogue, CharacterID: "Bob", Text: "Careful now."},
		{
			Kind: parser.StepHint, Text: "You found treasure",
			Changes: []parser.Change{
				{Kind: parser.ChangeItem, ItemName: "gold", ItemAction: parser.ItemAcquire, Quantity: 5},
				{Kind: parser.ChangeRelationship, NPCName: "Bob", Delta: 10},
			},
		},
		{
			Kind: parser.StepChoice, ChoiceTitle: "What now?", ChoiceDescription: "Choose wisely.",
			Options: []string{"Fight", "Flee"},
		},
	}

	serialized := parser.Serialize(steps, true)
	res := parser.ParseReply(serialized)

	require.True(t, res.MissionFlag)
	require.Len(t, res.Steps, 4)
	assert.Equal(t, steps[0].Text, res.Steps[0].Text)
	assert.Equal(t, steps[1].CharacterID, res.Steps[1].CharacterID)
	assert.Equal(t, steps[1].Text, res.Steps[1].Text)
	require.Len(t, res.Steps[2].Changes, 2)
	assert.Equal(t, 5, res.Deltas.Items[0].Quantity)
	assert.Equal(t, 10, res.Deltas.Relationships["Bob"])
	assert.Equal(t, []string{"Fight", "Flee"}, res.Steps[3].Options)
}
