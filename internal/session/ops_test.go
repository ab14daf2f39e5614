package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/llmclient"
	"llmrpg/internal/mission"
	"llmrpg/internal/store"
)

func TestSubmitMission_CompletesSatisfiedPath(t *testing.T) {
	mgr, _ := newHarness(t, &llmclient.Fake{})
	_, err := mgr.Create("sess1", testFileID, "Mira", "literary")
	require.NoError(t, err)

	cs, _ := mgr.Get("sess1")
	cs.Missions = append(cs.Missions, mission.Mission{
		ID: "m1", Title: "Find the relic", Type: mission.TypeSide, Status: mission.StatusActive,
		Paths: []mission.Path{{Name: "search it out", Requirements: mission.Requirements{}, Rewards: mission.Requirements{CurrencyDelta: 15}}},
	})

	result, err := mgr.SubmitMission(context.Background(), "sess1", "m1")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, "search it out", result.CompletedPath)

	cs, _ = mgr.Get("sess1")
	assert.Equal(t, mission.StatusCompleted, cs.Missions[0].Status)
	assert.Equal(t, "search it out", cs.Missions[0].CompletedPath)
}

func TestSubmitMission_ReSubmitAfterCompletionIsIdempotent(t *testing.T) {
	mgr, st := newHarness(t, &llmclient.Fake{})
	_, err := mgr.Create("sess1", testFileID, "Mira", "literary")
	require.NoError(t, err)

	cs, _ := mgr.Get("sess1")
	cs.Missions = append(cs.Missions, mission.Mission{
		ID: "m1", Title: "Find the relic", Type: mission.TypeSide, Status: mission.StatusActive,
		Paths: []mission.Path{{Name: "search it out", Requirements: mission.Requirements{}, Rewards: mission.Requirements{CurrencyDelta: 15}}},
	})

	first, err := mgr.SubmitMission(context.Background(), "sess1", "m1")
	require.NoError(t, err)
	require.True(t, first.Completed)

	var playerAfterFirst store.Player
	require.NoError(t, st.LoadSession("sess1", store.DocPlayer, &playerAfterFirst))

	second, err := mgr.SubmitMission(context.Background(), "sess1", "m1")
	require.NoError(t, err)
	assert.Equal(t, first.Completed, second.Completed)
	assert.Equal(t, first.CompletedPath, second.CompletedPath)
	assert.Empty(t, second.PathResults) // replayed outcome, paths not re-evaluated

	var playerAfterSecond store.Player
	require.NoError(t, st.LoadSession("sess1", store.DocPlayer, &playerAfterSecond))
	assert.Equal(t, playerAfterFirst.Currency, playerAfterSecond.Currency) // reward not re-applied
}

func TestSubmitMission_UnknownMissionFails(t *testing.T) {
	mgr, _ := newHarness(t, &llmclient.Fake{})
	_, err := mgr.Create("sess1", testFileID, "Mira", "literary")
	require.NoError(t, err)

	_, err = mgr.SubmitMission(context.Background(), "sess1", "no-such-mission")
	assert.Error(t, err)
}

func TestAbandonMission_ClearsStorylineBlockOnce(t *testing.T) {
	mgr, _ := newHarness(t, &llmclient.Fake{Replies: []string{"[NARRATION: the tale moves on.]"}})
	_, err := mgr.Create("sess1", testFileID, "Mira", "literary")
	require.NoError(t, err)

	cs, _ := mgr.Get("sess1")
	cs.Missions = append(cs.Missions, mission.Mission{ID: "m1", Title: "Find the relic", Type: mission.TypeStory, Status: mission.StatusActive})
	cs.BlockedByMissionID = "m1"

	result, err := mgr.AbandonMission(context.Background(), "sess1", "m1")
	require.NoError(t, err)
	assert.True(t, result.StorylineUnblocked)
	assert.Equal(t, mission.StatusAbandoned, result.Mission.Status)

	second, err := mgr.AbandonMission(context.Background(), "sess1", "m1")
	require.NoError(t, err)
	assert.False(t, second.StorylineUnblocked) // already unblocked, idempotent replay
	assert.Equal(t, mission.StatusAbandoned, second.Mission.Status)
}

func TestAbandonMission_UnknownMissionFails(t *testing.T) {
	mgr, _ := newHarness(t, &llmclient.Fake{})
	_, err := mgr.Create("sess1", testFileID, "Mira", "literary")
	require.NoError(t, err)

	_, err = mgr.AbandonMission(context.Background(), "sess1", "no-such-mission")
	assert.Error(t, err)
}
