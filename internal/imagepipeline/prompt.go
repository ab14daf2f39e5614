// Package imagepipeline generates and persists visual assets (NPC avatars,
// scene backgrounds, building icons, world art, player portraits) for a
// fileId, fanning the per-element requests out concurrently and scaling
// each downloaded image to its target size (spec §4.9).
package imagepipeline

import (
	"fmt"
	"strings"

	"llmrpg/internal/store"
)

// keyword heuristics: a Background/KeyedEvent line mentioning one of these
// terms is surfaced in the lore context summary handed to the image prompt,
// the same "extracted by keyword heuristics" contract spec §4.9 describes
// without naming an algorithm.
var contextKeywords = []string{
	"war", "kingdom", "empire", "ancient", "ruins", "magic", "industrial",
	"desert", "forest", "coastal", "mountain", "plague", "revolution",
	"temple", "castle", "frontier", "underground", "floating", "ice",
}

// loreContext is the short summary a prompt template is built around.
type loreContext struct {
	Era        string
	TimePeriod string
	Highlights []string
}

func buildLoreContext(lore store.Lore) loreContext {
	ctx := loreContext{TimePeriod: lore.TimePeriod}
	if lore.EraLabel != "" {
		ctx.Era = lore.EraLabel
	} else if lore.CurrentEraIndex < len(lore.Eras) {
		ctx.Era = lore.Eras[lore.CurrentEraIndex].Title
	}

	lines := append([]string{}, lore.Background...)
	for _, ev := range lore.KeyedEvents {
		lines = append(lines, ev.Description)
	}
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range contextKeywords {
			if strings.Contains(lower, kw) {
				ctx.Highlights = append(ctx.Highlights, strings.TrimSpace(line))
				break
			}
		}
		if len(ctx.Highlights) >= 3 {
			break
		}
	}
	return ctx
}

func (c loreContext) summary() string {
	var b strings.Builder
	if c.Era != "" {
		fmt.Fprintf(&b, "Era: %s. ", c.Era)
	}
	if c.TimePeriod != "" {
		fmt.Fprintf(&b, "Time period: %s. ", c.TimePeriod)
	}
	for _, h := range c.Highlights {
		fmt.Fprintf(&b, "%s. ", h)
	}
	return strings.TrimSpace(b.String())
}

const visualStyleDirective = "digital painting, consistent art direction, no text or watermarks"

func npcPrompt(ctx loreContext, npc store.NPC) string {
	desc := npc.Description
	if desc == "" {
		desc = npc.Job
	}
	return fmt.Sprintf("Portrait of %s, %s. %s %s", npc.Name, desc, ctx.summary(), visualStyleDirective)
}

func scenePrompt(ctx loreContext, sceneName, sceneDesc string) string {
	return fmt.Sprintf("Wide establishing background of %s: %s. %s %s", sceneName, sceneDesc, ctx.summary(), visualStyleDirective)
}

func buildingPrompt(ctx loreContext, b store.Building) string {
	return fmt.Sprintf("Icon of a %s named %s. %s %s %s", orDefault(b.Type, "building"), b.Name, b.Description, ctx.summary(), visualStyleDirective)
}

func worldPrompt(ctx loreContext, title string) string {
	return fmt.Sprintf("Wide vista establishing the world of %s. %s %s", title, ctx.summary(), visualStyleDirective)
}

func userPrompt(ctx loreContext, playerName string) string {
	return fmt.Sprintf("Portrait of %s, the protagonist. %s %s", playerName, ctx.summary(), visualStyleDirective)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
