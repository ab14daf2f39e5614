package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llmrpg/internal/apperr"
	"llmrpg/internal/llmclient"
	"llmrpg/internal/logging"
	"llmrpg/internal/mission"
	"llmrpg/internal/parser"
	"llmrpg/internal/prompt"
	"llmrpg/internal/status"
	"llmrpg/internal/store"
	"llmrpg/internal/streamhub"

	"go.uber.org/zap"
)

// RuntimeConfig bundles the design constants the Session Runtime needs
// (spec §4.6, §9 open-question resolutions).
type RuntimeConfig struct {
	Model              string
	Temperature        float64
	MaxTokens          int
	Timeout            time.Duration
	MaxRetries         int
	HistoryCap         int // conversationHistory bound (spec §9 open question, pinned)
	MissionCadence     int
	GameHoursPerAction int
}

func (c RuntimeConfig) llmOptions() llmclient.Options {
	return llmclient.Options{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
		MaxRetries:  c.MaxRetries,
	}
}

// sessionEntry pairs a ConversationState with the concurrency controls
// spec §5 requires: writeMu serializes the mutating operations for one
// sessionId, mu guards the visible state pointer so Get/storylineStatus see
// a whole-before-or-whole-after snapshot without blocking on writeMu.
type sessionEntry struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *ConversationState
}

func (e *sessionEntry) snapshot() *ConversationState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *sessionEntry) publish(cs *ConversationState) {
	e.mu.Lock()
	e.state = cs
	e.mu.Unlock()
}

// Manager is the Session Runtime (spec §4.6): owns per-session
// ConversationState and drives processAction/useItem/changeScene/
// skipToNextEra under the striped single-writer discipline of spec §5.
type Manager struct {
	store   *store.Store
	llm     llmclient.Adapter
	status  *status.Engine
	mission *mission.Engine
	hub     *streamhub.Hub
	cfg     RuntimeConfig

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// New builds a Session Runtime.
func New(st *store.Store, llm llmclient.Adapter, hub *streamhub.Hub, missionEngine *mission.Engine, cfg RuntimeConfig) *Manager {
	return &Manager{
		store:   st,
		llm:     llm,
		status:  status.New(st),
		mission: missionEngine,
		hub:     hub,
		cfg:     cfg,
		entries: make(map[string]*sessionEntry),
	}
}

func (m *Manager) entryFor(sessionID string) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		e = &sessionEntry{}
		m.entries[sessionID] = e
	}
	return e
}

// clone makes a deep-enough copy of cs so in-flight mutation never touches
// the pointer concurrent readers may be holding.
func (cs *ConversationState) clone() *ConversationState {
	out := *cs
	out.History = append([]HistoryEntry{}, cs.History...)
	out.ConversationHistory = append([]ConversationMessage{}, cs.ConversationHistory...)
	out.Missions = append([]mission.Mission{}, cs.Missions...)
	out.CompletedMissions = append([]mission.Mission{}, cs.CompletedMissions...)
	return &out
}

// Create materializes a new session from its fileId template (spec §4.6).
func (m *Manager) Create(sessionID, fileID, playerName, literaryStyle string) (*ConversationState, error) {
	bundle, err := m.store.MaterializeSessionFromTemplate(sessionID, fileID)
	if err != nil {
		return nil, err
	}

	if literaryStyle == "" {
		literaryStyle = string(prompt.DefaultStyle)
	}
	if playerName != "" {
		bundle.Player.Profile.Name = playerName
		if err := m.store.SaveSession(sessionID, store.DocPlayer, bundle.Player); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	cs := &ConversationState{
		SessionID:     sessionID,
		FileID:        fileID,
		PlayerName:    bundle.Player.Profile.Name,
		LiteraryStyle: literaryStyle,
		GameState: GameState{
			CurrentLocation: bundle.Player.Location,
			IsInitialized:   false,
			CreatedAt:       now,
		},
	}

	if err := m.persist(cs); err != nil {
		return nil, err
	}
	m.entryFor(sessionID).publish(cs)
	return cs, nil
}

// Get returns the in-memory ConversationState for sessionID without taking
// the write lock (spec §5 "reads ... see a consistent snapshot").
func (m *Manager) Get(sessionID string) (*ConversationState, bool) {
	e := m.entryFor(sessionID)
	cs := e.snapshot()
	return cs, cs != nil
}

// RecoverSession rehydrates a ConversationState from its disk snapshot when
// no in-memory session exists (spec §4.6).
func (m *Manager) RecoverSession(sessionID string) (*ConversationState, error) {
	if cs, ok := m.Get(sessionID); ok {
		return cs, nil
	}
	var cs ConversationState
	if err := m.store.LoadConversationState(sessionID, &cs); err != nil {
		return nil, err
	}
	m.entryFor(sessionID).publish(&cs)
	return &cs, nil
}

func (m *Manager) persist(cs *ConversationState) error {
	if err := m.store.SaveConversationState(cs.SessionID, cs); err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "save conversation state", err)
	}
	if err := m.store.SaveHistory(cs.SessionID, cs.History); err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "save history", err)
	}
	return nil
}

// Result is the processAction return shape (spec §4.6).
type Result struct {
	Response          string
	Steps             []parser.Step
	ActionOptions     []string
	GameState         GameState
	CharacterStatus   *store.Player
	Missions          []mission.Mission
	NewMission        *mission.Mission
	CompletedMissions []mission.Mission
	Warnings          []string
}

// ProcessAction runs one player turn end to end (spec §4.6 steps 1-10). mode
// selects whether chunks are published as buffered response_chunk events
// (streamHub "buffered" mode) or live stream events; both publish through
// the same Stream Hub channel.
func (m *Manager) ProcessAction(ctx context.Context, sessionID, action string, live bool) (*Result, error) {
	e := m.entryFor(sessionID)
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	base := e.snapshot()
	if base == nil {
		return nil, apperr.New(apperr.NotFound, "session not found: "+sessionID)
	}
	cs := base.clone()

	m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventActionReceived})

	cs.History = append(cs.History, HistoryEntry{Type: HistoryPlayerAction, Text: action, TS: time.Now()})
	cs.ConversationHistory = append(cs.ConversationHistory, ConversationMessage{Role: "user", Content: action})

	if blocking, blocked := cs.activeStoryMission(); blocked {
		result := &Result{
			Response:        fmt.Sprintf("You cannot proceed until you resolve \"%s\": %s", blocking.Title, blocking.Description),
			GameState:       cs.GameState,
			Missions:        cs.Missions,
			CharacterStatus: nil,
		}
		cs.History = append(cs.History, HistoryEntry{Type: HistoryNarration, Text: result.Response, TS: time.Now()})
		if err := m.persist(cs); err != nil {
			return nil, err
		}
		e.publish(cs)
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventComplete})
		return result, nil
	}

	m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventProcessing})

	bundle, err := m.store.LoadBundle(sessionID)
	if err != nil {
		return nil, err
	}

	in := prompt.Input{
		Lore:           bundle.Lore,
		Player:         bundle.Player,
		Scenes:         bundle.Scenes,
		CurrentSceneID: bundle.Player.Location,
		Style:          prompt.ParseStyle(cs.LiteraryStyle),
		IsFirstTurn:    !cs.GameState.IsInitialized,
		PlayerName:     cs.PlayerName,
		ActiveMissions: activeMissionObjectives(cs.Missions),
	}
	messages := prompt.BuildMessages(in, toLLMMessages(dropLast(cs.ConversationHistory)), m.cfg.HistoryCap, action)

	fullText, err := m.streamReply(ctx, sessionID, messages, live)
	if err != nil {
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventError, Data: map[string]any{"error": err.Error()}})
		return nil, apperr.Wrap(apperr.LLMFailure, "llm call failed", err)
	}

	parsed := parser.ParseReply(fullText)

	player, err := m.status.Apply(sessionID, parsed.Deltas)
	if err != nil {
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventError, Data: map[string]any{"error": err.Error()}})
		return nil, err
	}

	cs.GameState.LastAction = action
	cs.GameState.IsInitialized = true
	m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventStateUpdate, Data: map[string]any{
		"gameState":       cs.GameState,
		"characterStatus": player,
	}})
	if len(parsed.ChoiceOptions) > 0 {
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventActionOptions, Data: map[string]any{"options": parsed.ChoiceOptions}})
	}

	cs.ConversationHistory = append(cs.ConversationHistory, ConversationMessage{Role: "assistant", Content: fullText})
	cs.ConversationHistory = boundConversationHistory(cs.ConversationHistory, m.cfg.HistoryCap)
	appendParsedSteps(cs, parsed.Steps)
	m.recordNPCChats(sessionID, action, bundle.Scenes, parsed.Steps)

	cs.TurnCount++

	var warnings []string
	var newMission *mission.Mission
	var completed []mission.Mission
	if err := m.missionTick(ctx, cs, in, parsed.MissionFlag, player, bundle.Items); err != nil {
		warnings = append(warnings, "mission engine: "+err.Error())
	} else if len(cs.Missions) > len(base.Missions) {
		nm := cs.Missions[len(cs.Missions)-1]
		newMission = &nm
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventNewMission, Data: map[string]any{"mission": nm}})
	}
	completed = newlyCompleted(base.CompletedMissions, cs.CompletedMissions)
	for _, c := range completed {
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventMissionCompleted, Data: map[string]any{"mission": c}})
	}
	if len(completed) > 0 {
		// auto-resolution may have credited rewards onto player beyond what
		// the Status Engine already persisted above.
		if err := m.store.SaveSession(sessionID, store.DocPlayer, player); err != nil {
			warnings = append(warnings, "persist mission rewards: "+err.Error())
		}
	}

	if err := m.advanceGameTime(sessionID); err != nil {
		warnings = append(warnings, "game time: "+err.Error())
	}

	if err := m.persist(cs); err != nil {
		m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventError, Data: map[string]any{"error": err.Error()}})
		return nil, err
	}
	e.publish(cs)

	m.hub.Publish(sessionID, streamhub.Event{Type: streamhub.EventComplete})

	return &Result{
		Response:          fullText,
		Steps:             parsed.Steps,
		ActionOptions:     parsed.ChoiceOptions,
		GameState:         cs.GameState,
		CharacterStatus:   player,
		Missions:          cs.Missions,
		NewMission:        newMission,
		CompletedMissions: completed,
		Warnings:          warnings,
	}, nil
}

// streamReply opens the LLM stream and forwards chunks to the Stream Hub,
// collecting the full text (spec §4.6 step 3).
func (m *Manager) streamReply(ctx context.Context, sessionID string, messages []llmclient.Message, live bool) (string, error) {
	chunks, err := m.llm.Stream(ctx, messages, m.cfg.llmOptions())
	if err != nil {
		return "", err
	}

	var full string
	index := 0
	for c := range chunks {
		if c.Err != nil {
			return "", c.Err
		}
		full += c.Text
		evType := streamhub.EventResponseChunk
		data := map[string]any{"chunk": c.Text, "index": index, "total": -1}
		if live {
			evType = streamhub.EventStream
			data = map[string]any{"chunk": c.Text}
		}
		m.hub.Publish(sessionID, streamhub.Event{Type: evType, Data: data})
		index++
	}
	if full == "" {
		return "", fmt.Errorf("empty reply from model")
	}
	return full, nil
}

func appendParsedSteps(cs *ConversationState, steps []parser.Step) {
	now := time.Now()
	for _, st := range steps {
		switch st.Kind {
		case parser.StepNarration:
			cs.History = append(cs.History, HistoryEntry{Type: HistoryNarration, Text: st.Text, TS: now})
		case parser.StepDialogue:
			cs.History = append(cs.History, HistoryEntry{Type: HistoryDialogue, Text: st.Text, TS: now})
		case parser.StepHint:
			cs.History = append(cs.History, HistoryEntry{Type: HistoryHint, Text: st.Text, TS: now})
		case parser.StepChoice:
			cs.History = append(cs.History, HistoryEntry{Type: HistoryNarration, Text: st.ChoiceDescription, TS: now})
		}
	}
}

// recordNPCChats appends each dialogue step whose characterId matches a
// known NPC to that NPC's persisted chat transcript, alongside the
// player's action as the opening line of the exchange (SPEC_FULL.md §4.13
// supplemented NPC chat feature; spec §6 auxiliary storage
// npc_chat_{sessionId}_{npcId}.json).
func (m *Manager) recordNPCChats(sessionID, action string, scenes store.Scenes, steps []parser.Step) {
	for _, st := range steps {
		if st.Kind != parser.StepDialogue || st.CharacterID == "" {
			continue
		}
		npc := findNPCByID(scenes, st.CharacterID)
		if npc == nil {
			continue
		}

		var transcript []store.NPCChatLine
		_ = m.store.LoadNPCChat(sessionID, npc.ID, &transcript)

		now := time.Now()
		transcript = append(transcript,
			store.NPCChatLine{Speaker: "player", Text: action, TS: now},
			store.NPCChatLine{Speaker: npc.Name, Text: st.Text, TS: now},
		)
		if err := m.store.SaveNPCChat(sessionID, npc.ID, transcript); err != nil {
			logging.Warn("persist npc chat transcript", zap.String("sessionId", sessionID), zap.String("npcId", npc.ID), zap.Error(err))
		}
	}
}

func findNPCByID(scenes store.Scenes, npcID string) *store.NPC {
	for _, scene := range scenes {
		if scene == nil {
			continue
		}
		for i := range scene.NPCs {
			if scene.NPCs[i].ID == npcID {
				return &scene.NPCs[i]
			}
		}
	}
	return nil
}

func boundConversationHistory(history []ConversationMessage, cap int) []ConversationMessage {
	if cap <= 0 || len(history) <= cap {
		return history
	}
	return history[len(history)-cap:]
}

func dropLast(history []ConversationMessage) []ConversationMessage {
	if len(history) == 0 {
		return history
	}
	return history[:len(history)-1]
}

func activeMissionObjectives(missions []mission.Mission) []prompt.MissionObjective {
	var out []prompt.MissionObjective
	for _, m := range missions {
		if m.Status != mission.StatusActive {
			continue
		}
		var paths []string
		for _, p := range m.Paths {
			paths = append(paths, p.Name)
		}
		out = append(out, prompt.MissionObjective{Title: m.Title, Description: m.Description, PathNames: paths})
	}
	return out
}

func newlyCompleted(before, after []mission.Mission) []mission.Mission {
	if len(after) <= len(before) {
		return nil
	}
	return append([]mission.Mission{}, after[len(before):]...)
}

// advanceGameTime applies the one-logical-tick clock advance (spec §4.6
// step 9); era advancement stays explicit via SkipToNextEra.
func (m *Manager) advanceGameTime(sessionID string) error {
	var lore store.Lore
	if err := m.store.LoadSession(sessionID, store.DocLore, &lore); err != nil {
		return err
	}
	lore.CurrentGameTime = lore.CurrentGameTime.AddHours(m.cfg.GameHoursPerAction)
	return m.store.SaveSession(sessionID, store.DocLore, &lore)
}
