package session

import (
	"context"
	"fmt"
	"time"

	"llmrpg/internal/apperr"
	"llmrpg/internal/mission"
	"llmrpg/internal/prompt"
	"llmrpg/internal/store"
	"llmrpg/internal/streamhub"
)

// UseItem implements the use-item contract (spec §4.3): resolves itemId to
// its name, then submits a synthesized action through the normal
// processAction path. The inventory decrement, if any, comes from whatever
// delta the LLM's reply emits — not from this call directly.
func (m *Manager) UseItem(ctx context.Context, sessionID, itemID string) (*Result, error) {
	var player store.Player
	if err := m.store.LoadSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, err
	}

	var itemName string
	for _, it := range player.Inventory {
		if it.ID == itemID {
			itemName = it.Name
			break
		}
	}
	if itemName == "" {
		return nil, apperr.New(apperr.NotFound, "item not found: "+itemID)
	}

	return m.ProcessAction(ctx, sessionID, prompt.UseItemAction(itemName), false)
}

// EraSkipResult is the structured diff returned by SkipToNextEra (spec §4.6).
type EraSkipResult struct {
	PreviousEra    store.Era  `json:"previousEra"`
	CurrentEra     store.Era  `json:"currentEra"`
	TimeChange     int        `json:"timeChange"`
	PlayerChanges  map[string]int `json:"playerChanges"`
	Narrative      string     `json:"narrative"`
}

// SkipToNextEra advances the session's lore to the next era, grows the
// player's age and stats, and narrates the transition (spec §4.6).
func (m *Manager) SkipToNextEra(sessionID string) (*EraSkipResult, error) {
	e := m.entryFor(sessionID)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var lore store.Lore
	if err := m.store.LoadSession(sessionID, store.DocLore, &lore); err != nil {
		return nil, err
	}
	if lore.CurrentEraIndex >= len(lore.Eras)-1 {
		return nil, apperr.New(apperr.AlreadyAtLastEra, "already at last era")
	}

	previous := lore.Eras[lore.CurrentEraIndex]
	lore.CurrentEraIndex++
	current := lore.Eras[lore.CurrentEraIndex]
	yearsPassed := current.YearStart - previous.YearStart

	var player store.Player
	if err := m.store.LoadSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, err
	}

	playerChanges := map[string]int{}
	player.Profile.Age += yearsPassed
	playerChanges["age"] = yearsPassed

	if player.Attributes == nil {
		player.Attributes = map[string]store.Attribute{}
	}
	for stat, delta := range current.StatsGrowth {
		cur := player.Attributes[stat]
		cur.Value += delta
		player.Attributes[stat] = cur
		playerChanges[stat] = delta
	}
	if current.CurrencyBonus != 0 {
		player.Currency += current.CurrencyBonus
		playerChanges["currency"] = current.CurrencyBonus
	}
	player.LastUpdated = time.Now()

	lore.CurrentGameTime = store.GameTime{Year: current.YearStart, MonthIndex: 0, DayIndex: 0, HourIndex: 0}

	if err := m.store.SaveSession(sessionID, store.DocLore, &lore); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "save lore", err)
	}
	if err := m.store.SaveSession(sessionID, store.DocPlayer, &player); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "save player", err)
	}

	narrative := fmt.Sprintf("Time turns. The %s gives way to the %s, and %d years pass.", previous.Title, current.Title, yearsPassed)

	base := e.snapshot()
	if base != nil {
		cs := base.clone()
		cs.History = append(cs.History, HistoryEntry{Type: HistorySystem, Text: narrative, TS: time.Now()})
		if err := m.persist(cs); err == nil {
			e.publish(cs)
		}
	}

	return &EraSkipResult{
		PreviousEra:   previous,
		CurrentEra:    current,
		TimeChange:    yearsPassed,
		PlayerChanges: playerChanges,
		Narrative:     narrative,
	}, nil
}

// ChangeScene implements the scene-change contract (spec §4.3): fails
// NotFound/SceneLocked, otherwise moves the player and records the
// transition in history.
func (m *Manager) ChangeScene(sessionID, sceneID string) (*store.Player, error) {
	e := m.entryFor(sessionID)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	base := e.snapshot()
	if base == nil {
		return nil, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	from := base.GameState.CurrentLocation

	player, err := m.status.ChangeScene(sessionID, sceneID)
	if err != nil {
		return nil, err
	}

	cs := base.clone()
	cs.GameState.CurrentLocation = sceneID
	cs.History = append(cs.History, HistoryEntry{
		Type: HistorySystem,
		Text: fmt.Sprintf("Scene changed: %s → %s", from, sceneID),
		TS:   time.Now(),
	})
	if err := m.persist(cs); err != nil {
		return nil, err
	}
	e.publish(cs)

	return player, nil
}

// submitContinuation re-runs processAction with the storyline-continuation
// action once a blocking story mission resolves (spec §4.8), streaming the
// result and emitting the given pre-event (mission_completed or
// mission_abandoned) before the continuation's own events.
func (m *Manager) submitContinuation(ctx context.Context, sessionID string, preEvent streamhub.Event) (*Result, error) {
	m.hub.Publish(sessionID, preEvent)
	return m.ProcessAction(ctx, sessionID, "the story continues", true)
}

// SubmitMission evaluates a mission's paths against current player state and
// applies the first satisfied path's rewards (spec §4.8).
func (m *Manager) SubmitMission(ctx context.Context, sessionID, missionID string) (*mission.SubmitResult, error) {
	e := m.entryFor(sessionID)
	e.writeMu.Lock()

	base := e.snapshot()
	if base == nil {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	cs := base.clone()

	idx := findMissionIndex(cs.Missions, missionID)
	if idx < 0 {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.MissionNotActive, "mission not active: "+missionID)
	}

	// Re-submitting an already-completed mission is idempotent (spec §8):
	// replay the original outcome instead of re-evaluating paths or
	// re-applying rewards.
	if cs.Missions[idx].Status == mission.StatusCompleted {
		e.writeMu.Unlock()
		return &mission.SubmitResult{Completed: true, CompletedPath: cs.Missions[idx].CompletedPath}, nil
	}
	if cs.Missions[idx].Status != mission.StatusActive {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.MissionNotActive, "mission not active: "+missionID)
	}

	var player store.Player
	if err := m.store.LoadSession(sessionID, store.DocPlayer, &player); err != nil {
		e.writeMu.Unlock()
		return nil, err
	}
	items := store.ItemsCatalog{}
	_ = m.store.LoadSession(sessionID, store.DocItems, &items)

	active := &cs.Missions[idx]
	satisfiedIdx, results := mission.Evaluate(active, &player)

	result := &mission.SubmitResult{PathResults: results}

	wasStory := active.Type == mission.TypeStory
	var completedMission mission.Mission

	if satisfiedIdx >= 0 {
		path := active.Paths[satisfiedIdx]
		mission.ApplyCompletion(&player, items, path)
		active.Status = mission.StatusCompleted
		active.CompletedPath = path.Name
		completedMission = *active
		cs.CompletedMissions = append(cs.CompletedMissions, completedMission)
		result.Completed = true
		result.CompletedPath = path.Name

		if err := m.store.SaveSession(sessionID, store.DocPlayer, &player); err != nil {
			e.writeMu.Unlock()
			return nil, apperr.Wrap(apperr.PersistenceFailure, "save player", err)
		}

		if wasStory && cs.BlockedByMissionID == completedMission.ID {
			cs.BlockedByMissionID = ""
		}
	}

	if err := m.persist(cs); err != nil {
		e.writeMu.Unlock()
		return nil, err
	}
	e.publish(cs)
	e.writeMu.Unlock()

	if result.Completed && wasStory {
		if _, err := m.submitContinuation(ctx, sessionID, streamhub.Event{
			Type: streamhub.EventMissionCompleted,
			Data: map[string]any{"mission": completedMission},
		}); err != nil {
			return result, err
		}
	}

	return result, nil
}

// AbandonResult is the outcome of AbandonMission.
type AbandonResult struct {
	Mission             mission.Mission `json:"mission"`
	StorylineUnblocked  bool            `json:"storylineUnblocked"`
}

// AbandonMission sets a mission to abandoned; if it was the blocking story
// mission, it clears the block and resumes the storyline, this time
// streaming the continuation (spec §4.8).
func (m *Manager) AbandonMission(ctx context.Context, sessionID, missionID string) (*AbandonResult, error) {
	e := m.entryFor(sessionID)
	e.writeMu.Lock()

	base := e.snapshot()
	if base == nil {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	cs := base.clone()

	idx := findMissionIndex(cs.Missions, missionID)
	if idx < 0 {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.MissionNotActive, "mission not active: "+missionID)
	}

	// Re-abandoning an already-abandoned mission is idempotent, matching
	// SubmitMission's replay behavior for an already-completed mission.
	if cs.Missions[idx].Status == mission.StatusAbandoned {
		abandoned := cs.Missions[idx]
		e.writeMu.Unlock()
		return &AbandonResult{Mission: abandoned, StorylineUnblocked: false}, nil
	}
	if cs.Missions[idx].Status != mission.StatusActive {
		e.writeMu.Unlock()
		return nil, apperr.New(apperr.MissionNotActive, "mission not active: "+missionID)
	}

	cs.Missions[idx].Status = mission.StatusAbandoned
	abandoned := cs.Missions[idx]

	unblocked := false
	if cs.BlockedByMissionID == abandoned.ID {
		cs.BlockedByMissionID = ""
		unblocked = true
	}

	if err := m.persist(cs); err != nil {
		e.writeMu.Unlock()
		return nil, err
	}
	e.publish(cs)
	e.writeMu.Unlock()

	result := &AbandonResult{Mission: abandoned, StorylineUnblocked: unblocked}

	if unblocked {
		if _, err := m.submitContinuation(ctx, sessionID, streamhub.Event{
			Type: streamhub.EventMissionAbandoned,
			Data: map[string]any{"mission": abandoned, "storylineUnblocked": unblocked},
		}); err != nil {
			return result, err
		}
	}

	return result, nil
}

// StorylineStatus is a synchronous read of whether the storyline is
// currently blocked (spec §4.8); it does not take the write lock.
func (m *Manager) StorylineStatus(sessionID string) (*mission.StorylineStatus, error) {
	cs, ok := m.Get(sessionID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	blockingMission, blocked := cs.activeStoryMission()

	hasActiveStory := false
	for i := range cs.Missions {
		if cs.Missions[i].Status == mission.StatusActive && cs.Missions[i].Type == mission.TypeStory {
			hasActiveStory = true
			break
		}
	}

	status := &mission.StorylineStatus{Blocked: blocked, HasActiveStoryMission: hasActiveStory}
	if blockingMission != nil {
		blockingCopy := *blockingMission
		status.Mission = &blockingCopy
	}
	return status, nil
}

func findMissionIndex(missions []mission.Mission, missionID string) int {
	for i, candidate := range missions {
		if candidate.ID == missionID {
			return i
		}
	}
	return -1
}
