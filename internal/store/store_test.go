package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"llmrpg/internal/character"
	"llmrpg/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func seedTemplate(t *testing.T, s *store.Store, fileID string) {
	t.Helper()
	lore := store.Lore{Title: "Oakhaven", Eras: []store.Era{{Title: "Dawn", YearStart: 0, YearEnd: 100}}}
	require.NoError(t, s.SaveTemplate(fileID, store.DocLore, &lore))

	player := store.Player{
		Profile:        character.NewProfile("Ash", 20, "nonbinary"),
		Attributes:     map[string]store.Attribute{"strength": {Value: 5}},
		Location:       "oakhaven_gate",
		UnlockedScenes: []string{"oakhaven_gate"},
		Network:        map[string]int{},
	}
	require.NoError(t, s.SaveTemplate(fileID, store.DocPlayer, &player))

	items := store.ItemsCatalog{"gold": {Name: "Gold Coin", Description: "currency"}}
	require.NoError(t, s.SaveTemplate(fileID, store.DocItems, &items))

	scenes := store.Scenes{"oakhaven_gate": {Name: "Oakhaven Gate", Description: "A weathered gate."}}
	require.NoError(t, s.SaveTemplate(fileID, store.DocScenes, &scenes))
}

func TestMaterializeSessionFromTemplate(t *testing.T) {
	s := newTestStore(t)
	seedTemplate(t, s, "file1")

	bundle, err := s.MaterializeSessionFromTemplate("sess1", "file1")
	require.NoError(t, err)
	require.Equal(t, "Oakhaven", bundle.Lore.Title)
	require.Equal(t, "Ash", bundle.Player.Profile.Name)
	require.True(t, s.ExistsSession("sess1"))

	var reloaded store.Player
	require.NoError(t, s.LoadSession("sess1", store.DocPlayer, &reloaded))
	require.Equal(t, "oakhaven_gate", reloaded.Location)
}

func TestMaterializeSessionFromTemplate_UnknownFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.MaterializeSessionFromTemplate("sess1", "nope")
	require.Error(t, err)
}

func TestSaveSessionAtomicOverwrite(t *testing.T) {
	s := newTestStore(t)
	seedTemplate(t, s, "file1")
	_, err := s.MaterializeSessionFromTemplate("sess1", "file1")
	require.NoError(t, err)

	p := store.Player{Currency: 42, Network: map[string]int{}}
	require.NoError(t, s.SaveSession("sess1", store.DocPlayer, &p))

	var reloaded store.Player
	require.NoError(t, s.LoadSession("sess1", store.DocPlayer, &reloaded))
	require.Equal(t, 42, reloaded.Currency)
}
