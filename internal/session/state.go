// Package session implements the Session Runtime (spec §4.6), the engine's
// main driver: processAction orchestrates the Prompt Builder, LLM Client,
// Parser, Status Engine, Mission Engine and Stream Hub for one player turn
// under per-session single-writer discipline. Generalized from the
// teacher's internal/app/router.go session package (GameSession / Manager /
// InMemorySessionManager), whose single map-wide sync.RWMutex is replaced
// here by a striped per-session mutex (spec §5 "per-session serialization"
// without Cross-session parallelism being serialized too).
package session

import (
	"time"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/mission"
)

// HistoryType discriminates the narrative log entries kept in history
// (spec §3), distinct from the LLM-facing conversationHistory.
type HistoryType string

const (
	HistoryPlayerAction HistoryType = "player_action"
	HistoryNarration    HistoryType = "narration"
	HistoryDialogue     HistoryType = "dialogue"
	HistoryHint         HistoryType = "hint"
	HistorySystem       HistoryType = "system"
)

// HistoryEntry is one entry of the full narrative log (spec §3).
type HistoryEntry struct {
	Type HistoryType `json:"type"`
	Text string      `json:"text"`
	TS   time.Time   `json:"ts"`
}

// ConversationMessage is one LLM-facing turn (spec §3 conversationHistory).
type ConversationMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// GameState is the lightweight view of world position surfaced to clients
// (spec §3 gameState).
type GameState struct {
	CurrentLocation string    `json:"currentLocation"`
	IsInitialized   bool      `json:"isInitialized"`
	LastAction      string    `json:"lastAction,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ConversationState is the full per-session in-memory/persisted document
// (spec §3).
type ConversationState struct {
	SessionID          string                 `json:"sessionId"`
	FileID              string                 `json:"fileId"`
	PlayerName          string                 `json:"playerName"`
	LiteraryStyle       string                 `json:"literaryStyle"`
	GameState           GameState              `json:"gameState"`
	History             []HistoryEntry         `json:"history"`
	ConversationHistory []ConversationMessage  `json:"conversationHistory"`
	TurnCount           int                    `json:"turnCount"`
	LastMissionTurn     int                    `json:"lastMissionTurn"`
	Missions            []mission.Mission      `json:"missions"`
	CompletedMissions   []mission.Mission      `json:"completedMissions"`
	BlockedByMissionID  string                 `json:"blockedByMissionId,omitempty"`
	FixtureIndex        int                    `json:"fixtureIndex"`
}

// activeStoryMission returns the blocking story mission, if any, and
// whether the storyline is currently blocked (spec §4.6 step 2).
func (cs *ConversationState) activeStoryMission() (*mission.Mission, bool) {
	if cs.BlockedByMissionID == "" {
		return nil, false
	}
	for i := range cs.Missions {
		m := &cs.Missions[i]
		if m.ID == cs.BlockedByMissionID && m.Status == mission.StatusActive && m.Type == mission.TypeStory {
			return m, true
		}
	}
	return nil, false
}

func toLLMMessages(history []ConversationMessage) []llmclient.Message {
	out := make([]llmclient.Message, len(history))
	for i, h := range history {
		out[i] = llmclient.Message{Role: h.Role, Content: h.Content}
	}
	return out
}
