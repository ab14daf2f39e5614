package session

import (
	"context"

	"llmrpg/internal/mission"
	"llmrpg/internal/prompt"
	"llmrpg/internal/store"
)

// missionTick runs the per-turn mission-engine pass (spec §4.8): first it
// auto-resolves any active mission whose path requirements the current
// player state already satisfies (the same rule submitMission applies, run
// automatically so players aren't forced to call submit by hand), then it
// runs the generation cadence check and appends a freshly generated mission
// if it fires. Generation failures are returned to the caller, who reports
// them as warnings without failing the action (spec §7 "Mission-engine
// failures during a tick never fail the action").
func (m *Manager) missionTick(ctx context.Context, cs *ConversationState, in prompt.Input, missionFlag bool, player *store.Player, items store.ItemsCatalog) error {
	autoResolveMissions(cs, player, items)

	_, blocked := cs.activeStoryMission()
	if !mission.ShouldGenerate(missionFlag, cs.TurnCount, cs.LastMissionTurn, m.cfg.MissionCadence, blocked) {
		return nil
	}

	// A scripted fixture mission (spec §4.8, loaded via mission.LoadFixtures)
	// takes priority over LLM generation until the session has worked
	// through every pre-authored story beat.
	newMission, ok := m.mission.NextFixture(cs.FixtureIndex)
	if ok {
		cs.FixtureIndex++
	} else {
		var err error
		newMission, err = m.mission.Generate(ctx, in, m.cfg.llmOptions())
		if err != nil {
			return err
		}
	}

	cs.Missions = append(cs.Missions, *newMission)
	cs.LastMissionTurn = cs.TurnCount
	if newMission.Type == mission.TypeStory {
		cs.BlockedByMissionID = newMission.ID
	}
	return nil
}

// autoResolveMissions completes any active mission whose first satisfied
// path already holds against player, applying its rewards and clearing the
// storyline block when a story mission resolves this way.
func autoResolveMissions(cs *ConversationState, player *store.Player, items store.ItemsCatalog) {
	for i := range cs.Missions {
		active := &cs.Missions[i]
		if active.Status != mission.StatusActive {
			continue
		}
		satisfiedIdx, _ := mission.Evaluate(active, player)
		if satisfiedIdx < 0 {
			continue
		}

		mission.ApplyCompletion(player, items, active.Paths[satisfiedIdx])
		active.Status = mission.StatusCompleted
		active.CompletedPath = active.Paths[satisfiedIdx].Name
		cs.CompletedMissions = append(cs.CompletedMissions, *active)
		if cs.BlockedByMissionID == active.ID {
			cs.BlockedByMissionID = ""
		}
	}
}
