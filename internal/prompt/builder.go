package prompt

import (
	"fmt"
	"strings"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/store"
)

// MissionObjective is the subset of mission state the prompt builder needs
// to phrase active missions as objectives (spec §4.5). Defined here rather
// than depending on package mission to avoid an import cycle (mission
// depends on prompt).
type MissionObjective struct {
	Title       string
	Description string
	PathNames   []string
}

// Input gathers everything BuildSystem needs for one turn.
type Input struct {
	Lore             *store.Lore
	Player           *store.Player
	Scenes           store.Scenes
	CurrentSceneID   string
	Style            Style
	IsFirstTurn      bool
	ActiveMissions   []MissionObjective
	PlayerName       string
}

// grammarSpec is injected verbatim into every system prompt so the model
// knows the marker grammar the parser (spec §4.2) expects.
const grammarSpec = `Respond using this line-oriented grammar. Unmatched lines are treated as narration.
- [MISSION: true|false] — whether this turn should spawn a new mission thread.
- [NARRATION: text] — scene description.
- [DIALOGUE: characterId, "text"] — a line of NPC speech.
- [HINT: text] opens a hint block; it may be followed immediately by CHANGE lines:
    [CHANGE: actorName, attrName, +N] or [CHANGE: actorName, attrName, -N]
    [CHANGE: RELATIONSHIP, npcName, +N] or [CHANGE: RELATIONSHIP, npcName, -N]
    [CHANGE: itemName, 获得, N] (acquire) or [CHANGE: itemName, 丢失, N] (lose)
- [CHOICE: title] opens a choice block; free text becomes its description; each
  [OPTION: text] adds an option; [END_CHOICE] closes it.
Use "player" as the actor name for the protagonist.`

// BuildSystem assembles the system prompt (spec §4.5).
func BuildSystem(in Input) string {
	var b strings.Builder

	b.WriteString("You are the narrative engine for an interactive-fiction text adventure. ")
	b.WriteString("Narrate outcomes vividly and respond in character to the player's actions.\n\n")

	if in.Lore != nil {
		fmt.Fprintf(&b, "World: %s\n", in.Lore.Title)
		if in.Lore.EraLabel != "" || in.Lore.TimePeriod != "" {
			fmt.Fprintf(&b, "Era: %s (%s)\n", in.Lore.EraLabel, in.Lore.TimePeriod)
		}
		fmt.Fprintf(&b, "Current time: year %d, month %d, day %d, hour %d\n",
			in.Lore.CurrentGameTime.Year, in.Lore.CurrentGameTime.MonthIndex,
			in.Lore.CurrentGameTime.DayIndex, in.Lore.CurrentGameTime.HourIndex)
		if len(in.Lore.Background) > 0 {
			bg := strings.Join(in.Lore.Background, " ")
			if len(bg) > 1200 {
				bg = bg[:1200] + "…"
			}
			fmt.Fprintf(&b, "Background: %s\n", bg)
		}
		b.WriteString("\n")
	}

	if in.Player != nil {
		fmt.Fprintf(&b, "Player: %s", in.Player.Profile.Name)
		if in.Player.Profile.Age > 0 {
			fmt.Fprintf(&b, ", age %d", in.Player.Profile.Age)
		}
		if in.Player.Profile.Gender != "" {
			fmt.Fprintf(&b, ", %s", in.Player.Profile.Gender)
		}
		b.WriteString("\n")

		if len(in.Player.Attributes) > 0 {
			var attrs []string
			for name, a := range in.Player.Attributes {
				attrs = append(attrs, fmt.Sprintf("%s=%d", name, a.Value))
			}
			fmt.Fprintf(&b, "Attributes: %s\n", strings.Join(attrs, ", "))
		}
		if len(in.Player.Inventory) > 0 {
			var items []string
			for _, it := range in.Player.Inventory {
				items = append(items, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
			}
			fmt.Fprintf(&b, "Inventory: %s\n", strings.Join(items, ", "))
		}
		fmt.Fprintf(&b, "Currency: %d\n", in.Player.Currency)
		fmt.Fprintf(&b, "Location: %s\n", in.Player.Location)
		fmt.Fprintf(&b, "Unlocked scenes: %s\n", strings.Join(in.Player.UnlockedScenes, ", "))
		b.WriteString("\n")
	}

	if scene, ok := in.Scenes[in.CurrentSceneID]; ok && scene != nil {
		fmt.Fprintf(&b, "Current scene: %s — %s\n", scene.Name, scene.Description)
		for _, npc := range scene.NPCs {
			fmt.Fprintf(&b, "  NPC %s: %s (%s)\n", npc.Name, npc.Description, npc.Job)
		}
		for _, bd := range scene.Buildings {
			fmt.Fprintf(&b, "  Building %s (%s): %s\n", bd.Name, bd.Type, bd.Description)
			for _, f := range bd.Features {
				fmt.Fprintf(&b, "    Feature %s: %s\n", f.Name, f.Description)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Literary style: %s\n\n", Style(in.Style).Directive())

	b.WriteString(grammarSpec)
	b.WriteString("\n\n")

	if len(in.ActiveMissions) > 0 {
		b.WriteString("Active missions (weave progress toward these into the narrative):\n")
		for _, m := range in.ActiveMissions {
			fmt.Fprintf(&b, "- %s: %s\n", m.Title, m.Description)
			for _, p := range m.PathNames {
				fmt.Fprintf(&b, "    objective path: %s\n", p)
			}
		}
		b.WriteString("\n")
	}

	if in.IsFirstTurn {
		b.WriteString("[INIT] This is the first turn of the session: establish the opening scene before responding to any action.\n")
	}

	return b.String()
}

// BuildUser returns the user-turn message for a plain player action.
func BuildUser(action string) llmclient.Message {
	return llmclient.Message{Role: "user", Content: action}
}

// UseItemAction synthesizes the action text for the use-item contract
// (spec §4.3).
func UseItemAction(itemName string) string {
	return fmt.Sprintf("我使用了%s", itemName)
}

// BuildMessages assembles the full ordered message list for one
// processAction call: system prompt, bounded history, then the current
// action.
func BuildMessages(in Input, history []llmclient.Message, historyCap int, action string) []llmclient.Message {
	msgs := make([]llmclient.Message, 0, len(history)+2)
	msgs = append(msgs, llmclient.Message{Role: "system", Content: BuildSystem(in)})
	msgs = append(msgs, BoundHistory(history, historyCap)...)
	msgs = append(msgs, BuildUser(action))
	return msgs
}

// BoundHistory returns the last cap entries of history (spec §9 open
// question: history truncation, pinned at 40 turns by SPEC_FULL.md/DESIGN.md).
func BoundHistory(history []llmclient.Message, cap int) []llmclient.Message {
	if cap <= 0 || len(history) <= cap {
		return history
	}
	return history[len(history)-cap:]
}

// BuildMissionPrompt builds the mission-generation prompt: same structural
// layout as BuildSystem, but asks for a JSON object instead of the step
// grammar (spec §4.5).
func BuildMissionPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(BuildSystem(in))
	b.WriteString("\nGenerate a new mission. Respond ONLY with a JSON object of the shape:\n")
	b.WriteString(`{"title": string, "type": "side"|"story", "description": string, "paths": [{"name": string, "requirements": {"items": [{"name": string, "qty": int}], "currencyDelta": int, "relationships": [{"npc": string, "minLevel": int}], "location": string, "flags": {}}, "rewards": {same shape as requirements}}]}`)
	b.WriteString("\n")
	return b.String()
}

// BuildNPCChatPrompt builds the NPC-chat prompt: same layout, but asks for
// plain in-character dialogue instead of the step grammar (spec §4.5).
func BuildNPCChatPrompt(in Input, npc store.NPC) string {
	var b strings.Builder
	b.WriteString(BuildSystem(in))
	fmt.Fprintf(&b, "\nYou are now voicing %s (%s), speaking directly to %s in character. ", npc.Name, npc.Job, in.PlayerName)
	b.WriteString("Respond with plain dialogue text only, no markers.\n")
	return b.String()
}
