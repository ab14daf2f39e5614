package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/prompt"
	"llmrpg/internal/store"
)

// Engine generates missions via an LLM call and evaluates/applies them
// against a Player document. It holds no per-session state of its own — the
// Session Runtime (§4.6) owns the missions[] slice and persists it as part
// of the conversation-state snapshot; the one exception is the shared,
// read-only fixture set loaded at startup (see NextFixture).
type Engine struct {
	llm      llmclient.Adapter
	fixtures []Mission
}

// New builds a mission Engine backed by llm, with no scripted fixtures.
func New(llm llmclient.Adapter) *Engine {
	return &Engine{llm: llm}
}

// NewWithFixtures builds a mission Engine backed by llm that prefers the
// given pre-authored missions (spec §4.8 generation cadence) over LLM
// generation until they are exhausted, typically loaded via LoadFixtures.
func NewWithFixtures(llm llmclient.Adapter, fixtures []Mission) *Engine {
	return &Engine{llm: llm, fixtures: fixtures}
}

// NextFixture returns the idx'th scripted mission, assigned a fresh id and
// active status, for a session that has consumed idx fixtures so far. It
// reports false once idx reaches the end of the fixture set, at which point
// the caller should fall back to Generate.
func (e *Engine) NextFixture(idx int) (*Mission, bool) {
	if idx < 0 || idx >= len(e.fixtures) {
		return nil, false
	}
	m := e.fixtures[idx]
	m.ID = uuid.NewString()
	m.Status = StatusActive
	return &m, true
}

// generatedMission is the JSON shape requested of the LLM by
// prompt.BuildMissionPrompt.
type generatedMission struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Paths       []Path `json:"paths"`
}

// Generate requests a new mission from the LLM (spec §4.8 generation
// cadence) and assigns it a fresh id and active status.
func (e *Engine) Generate(ctx context.Context, in prompt.Input, opts llmclient.Options) (*Mission, error) {
	sys := prompt.BuildMissionPrompt(in)
	reply, err := e.llm.Complete(ctx, []llmclient.Message{{Role: "system", Content: sys}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mission generation LLM call failed: %w", err)
	}

	var gen generatedMission
	if err := json.Unmarshal([]byte(extractJSON(reply)), &gen); err != nil {
		return nil, fmt.Errorf("mission generation produced invalid JSON: %w", err)
	}

	mtype := Type(gen.Type)
	if mtype != TypeStory && mtype != TypeSide {
		mtype = TypeSide
	}

	return &Mission{
		ID:          uuid.NewString(),
		Title:       gen.Title,
		Type:        mtype,
		Description: gen.Description,
		Status:      StatusActive,
		Paths:       gen.Paths,
	}, nil
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

// ShouldGenerate reports whether the generation cadence (spec §4.8) fires:
// the LLM set the mission flag, or enough turns elapsed since the last
// mission, and the storyline is not currently blocked.
func ShouldGenerate(missionFlag bool, turnCount, lastMissionTurn, cadence int, storylineBlocked bool) bool {
	if storylineBlocked {
		return false
	}
	return missionFlag || turnCount-lastMissionTurn >= cadence
}

// Evaluate checks every path of m against player, in definition order, and
// returns the first fully-satisfied path's index (-1 if none), plus the
// per-path report (spec §4.8 submitMission validation).
func Evaluate(m *Mission, player *store.Player) (satisfiedIdx int, results []PathResult) {
	satisfiedIdx = -1
	for i, p := range m.Paths {
		ok, missing := satisfies(player, p.Requirements)
		results = append(results, PathResult{
			PathName:            p.Name,
			Completed:           ok,
			Details:             pathDetails(p),
			MissingRequirements: missing,
		})
		if ok && satisfiedIdx < 0 {
			satisfiedIdx = i
		}
	}
	return satisfiedIdx, results
}

func pathDetails(p Path) string {
	return fmt.Sprintf("path %q", p.Name)
}

func satisfies(player *store.Player, req Requirements) (bool, []string) {
	var missing []string

	for _, ir := range req.Items {
		idx := findInventoryIndex(player.Inventory, ir.Name)
		if idx < 0 || player.Inventory[idx].Quantity < ir.Qty {
			missing = append(missing, fmt.Sprintf("item %s x%d", ir.Name, ir.Qty))
		}
	}

	if player.Currency < req.CurrencyDelta {
		missing = append(missing, fmt.Sprintf("currency >= %d", req.CurrencyDelta))
	}

	for _, rr := range req.Relationships {
		if player.Network[rr.NPC] < rr.MinLevel {
			missing = append(missing, fmt.Sprintf("relationship with %s >= %d", rr.NPC, rr.MinLevel))
		}
	}

	if req.Location != "" && player.Location != req.Location {
		missing = append(missing, fmt.Sprintf("location == %s", req.Location))
	}

	for k, v := range req.Flags {
		if player.Flags == nil || player.Flags[k] != v {
			missing = append(missing, fmt.Sprintf("flag %s == %v", k, v))
		}
	}

	return len(missing) == 0, missing
}

func findInventoryIndex(inv []store.InventoryItem, name string) int {
	for i, it := range inv {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

// ApplyCompletion deducts the completing path's consumed items and credits
// its rewards onto player (spec §4.8: "consumed items declared by the path
// are deducted, currency credited, relationships adjusted").
func ApplyCompletion(player *store.Player, items store.ItemsCatalog, path Path) {
	for _, ir := range path.Requirements.Items {
		idx := findInventoryIndex(player.Inventory, ir.Name)
		if idx < 0 {
			continue
		}
		player.Inventory[idx].Quantity -= ir.Qty
		if player.Inventory[idx].Quantity <= 0 {
			player.Inventory = append(player.Inventory[:idx], player.Inventory[idx+1:]...)
		}
	}

	for _, ir := range path.Rewards.Items {
		idx := findInventoryIndex(player.Inventory, ir.Name)
		if idx >= 0 {
			player.Inventory[idx].Quantity += ir.Qty
			continue
		}
		entry := store.InventoryItem{ID: ir.Name, Name: ir.Name, Quantity: ir.Qty}
		if tmpl, ok := items[ir.Name]; ok {
			entry.Description = tmpl.Description
		}
		player.Inventory = append(player.Inventory, entry)
	}

	player.Currency += path.Rewards.CurrencyDelta

	if len(path.Rewards.Relationships) > 0 {
		if player.Network == nil {
			player.Network = map[string]int{}
		}
		for _, rr := range path.Rewards.Relationships {
			v := player.Network[rr.NPC] + rr.MinLevel
			if v > 100 {
				v = 100
			}
			if v < -100 {
				v = -100
			}
			player.Network[rr.NPC] = v
		}
	}

	if len(path.Rewards.Flags) > 0 {
		if player.Flags == nil {
			player.Flags = map[string]any{}
		}
		for k, v := range path.Rewards.Flags {
			player.Flags[k] = v
		}
	}
}
