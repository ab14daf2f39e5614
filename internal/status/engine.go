// Package status implements the Status Engine (spec §4.3): applies
// attribute/inventory/relationship deltas to the player document under the
// invariants of spec §3 (clamping, non-negative quantities, currency
// accounting, scene/network sync).
package status

import (
	"strings"
	"time"

	"llmrpg/internal/apperr"
	"llmrpg/internal/parser"
	"llmrpg/internal/store"
)

// Engine applies deltas to a session's Player document, persisting the
// result atomically via the Game Data Store (spec §4.3).
type Engine struct {
	store *store.Store
}

// New creates a Status Engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Apply loads the session's player/items/scenes documents, applies deltas
// under the §4.3 rules (in order: attributes, items, relationships,
// lastUpdated), persists the player (and scenes, if any relationship
// changed), and returns the updated player.
func (e *Engine) Apply(sessionID string, deltas *parser.Deltas) (*store.Player, error) {
	var player store.Player
	if err := e.store.LoadSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, err
	}
	items := store.ItemsCatalog{}
	_ = e.store.LoadSession(sessionID, store.DocItems, &items) // catalog is best-effort for description hydration

	scenesChanged := ApplyInPlace(&player, items, deltas)

	if err := e.store.SaveSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "save player", err)
	}

	if scenesChanged {
		var scenes store.Scenes
		if err := e.store.LoadSession(sessionID, store.DocScenes, &scenes); err == nil {
			mirrorRelationships(scenes, deltas.Relationships, player.Network)
			if err := e.store.SaveSession(sessionID, store.DocScenes, &scenes); err != nil {
				return nil, apperr.Wrap(apperr.PersistenceFailure, "save scenes", err)
			}
		}
	}

	return &player, nil
}

// ApplyInPlace mutates player according to the §4.3 rules and reports
// whether any network/relationship value changed (so callers know whether
// scene NPC mirroring is needed). It never fails: unresolvable deltas are
// skipped. Calling with an empty Deltas is a no-op (modulo LastUpdated),
// satisfying the apply(s, ∅) ≡ s idempotence law (spec §8).
func ApplyInPlace(player *store.Player, items store.ItemsCatalog, deltas *parser.Deltas) (scenesChanged bool) {
	if deltas == nil {
		return false
	}

	// Rule 1: attribute deltas, keyed "actorName.attrName". Only the player
	// alias's own attributes live on the player document; NPC attribute
	// deltas have no persistent home in this document and are ignored here
	// (they would require a per-NPC stat block, out of scope per spec §3).
	if player.Attributes == nil {
		player.Attributes = map[string]store.Attribute{}
	}
	for key, delta := range deltas.Attributes {
		actor, attr, ok := splitActorAttr(key)
		if !ok || !parser.IsPlayerAlias(actor) {
			continue
		}
		cur := player.Attributes[attr]
		newVal := cur.Value + delta
		if cur.Cap != nil {
			newVal = clamp(newVal, 0, *cur.Cap)
		} else if newVal < 0 {
			newVal = 0
		}
		cur.Value = newVal
		player.Attributes[attr] = cur
	}

	// Rule 2: item changes, merged by case-insensitive name match.
	for _, id := range deltas.Items {
		applyItemDelta(player, items, id)
	}

	// Rule 3: relationship deltas, clamped to [-100, 100].
	if len(deltas.Relationships) > 0 {
		if player.Network == nil {
			player.Network = map[string]int{}
		}
		for npc, delta := range deltas.Relationships {
			newVal := clamp(player.Network[npc]+delta, -100, 100)
			if player.Network[npc] != newVal {
				scenesChanged = true
			}
			player.Network[npc] = newVal
		}
	}

	// Rule 4.
	player.LastUpdated = time.Now()

	return scenesChanged
}

func splitActorAttr(key string) (actor, attr string, ok bool) {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

func applyItemDelta(player *store.Player, items store.ItemsCatalog, d parser.ItemDelta) {
	idx := findInventoryIndex(player.Inventory, d.Name)

	switch d.Action {
	case parser.ItemAcquire:
		if idx >= 0 {
			player.Inventory[idx].Quantity += d.Quantity
			return
		}
		entry := store.InventoryItem{ID: d.Name, Name: d.Name, Quantity: d.Quantity}
		if tmpl, ok := items[d.Name]; ok {
			entry.Description = tmpl.Description
		} else {
			for id, tmpl := range items {
				if strings.EqualFold(tmpl.Name, d.Name) {
					entry.ID = id
					entry.Description = tmpl.Description
					break
				}
			}
		}
		player.Inventory = append(player.Inventory, entry)
	case parser.ItemLose:
		if idx < 0 {
			return
		}
		player.Inventory[idx].Quantity -= d.Quantity
		if player.Inventory[idx].Quantity <= 0 {
			player.Inventory = append(player.Inventory[:idx], player.Inventory[idx+1:]...)
		}
	}
}

func findInventoryIndex(inv []store.InventoryItem, name string) int {
	for i, it := range inv {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

func mirrorRelationships(scenes store.Scenes, relationships map[string]int, network map[string]int) {
	for _, scene := range scenes {
		if scene == nil {
			continue
		}
		for i := range scene.NPCs {
			npc := &scene.NPCs[i]
			if level, ok := network[npc.Name]; ok {
				if _, changed := relationships[npc.Name]; changed {
					v := level
					npc.Relationship = &v
				}
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChangeScene implements spec §4.3's changeScene contract: moves the player
// to sceneID if it exists and is unlocked, updating player.location.
// Callers (session runtime) are responsible for updating
// conversationState.gameState.currentLocation and appending the history
// entry, since those live outside the Player document.
func (e *Engine) ChangeScene(sessionID, sceneID string) (*store.Player, error) {
	var scenes store.Scenes
	if err := e.store.LoadSession(sessionID, store.DocScenes, &scenes); err != nil {
		return nil, err
	}
	if _, ok := scenes[sceneID]; !ok {
		return nil, apperr.New(apperr.NotFound, "scene not found: "+sceneID)
	}

	var player store.Player
	if err := e.store.LoadSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, err
	}
	if !player.HasUnlockedScene(sceneID) {
		return nil, apperr.New(apperr.SceneLocked, "scene locked: "+sceneID)
	}

	player.Location = sceneID
	player.LastUpdated = time.Now()
	if err := e.store.SaveSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "save player", err)
	}
	return &player, nil
}
