package imagepipeline_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/llmclient"
	"llmrpg/internal/store"
)

func testPNGServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	lore := store.Lore{
		Title:      "Oakhaven",
		Background: []string{"An ancient kingdom fell to war centuries ago."},
		EraLabel:   "Age of Ash",
		TimePeriod: "late autumn",
	}
	require.NoError(t, st.SaveTemplate("file1", store.DocLore, &lore))

	var player store.Player
	player.Profile.Name = "Ash"
	require.NoError(t, st.SaveTemplate("file1", store.DocPlayer, &player))

	items := store.ItemsCatalog{}
	require.NoError(t, st.SaveTemplate("file1", store.DocItems, &items))

	scenes := store.Scenes{
		"gate": {
			Name: "Gate", Description: "A weathered stone gate.",
			NPCs:      []store.NPC{{ID: "guard", Name: "Guard", Job: "sentry"}},
			Buildings: []store.Building{{ID: "tower", Name: "Watchtower", Type: "tower"}},
		},
	}
	require.NoError(t, st.SaveTemplate("file1", store.DocScenes, &scenes))

	return st, "file1"
}

func TestGenerateAllGameImages_WritesScaledAssetsAndUpdatesJSON(t *testing.T) {
	srv := testPNGServer(t)
	st, fileID := newTestStore(t)
	assetDir := t.TempDir()

	fake := &llmclient.Fake{Images: []string{srv.URL, srv.URL, srv.URL, srv.URL, srv.URL}}
	p := imagepipeline.New(fake, st, assetDir)

	result, err := p.GenerateAllGameImages(context.Background(), fileID, imagepipeline.Options{
		GenerateNPCs: true, GenerateScenes: true, GenerateBuildings: true,
		GenerateWorld: true, GenerateUser: true, UpdateJSON: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	require.Len(t, result.NPCs, 1)
	assert.FileExists(t, result.NPCs[0].Path)
	require.Len(t, result.Scenes, 1)
	assert.FileExists(t, result.Scenes[0].Path)
	require.Len(t, result.Buildings, 1)
	assert.FileExists(t, result.Buildings[0].Path)
	assert.FileExists(t, result.World)
	assert.FileExists(t, result.User)

	var scenes store.Scenes
	require.NoError(t, st.LoadTemplate(fileID, store.DocScenes, &scenes))
	assert.NotEmpty(t, scenes["gate"].Background)
	assert.NotEmpty(t, scenes["gate"].NPCs[0].Icon)
	assert.NotEmpty(t, scenes["gate"].Buildings[0].Icon)
}

func TestGenerateAllGameImages_GenerationFailureIsRecordedNotFatal(t *testing.T) {
	st, fileID := newTestStore(t)
	assetDir := t.TempDir()

	fake := &llmclient.Fake{ImageErr: assert.AnError}
	p := imagepipeline.New(fake, st, assetDir)

	result, err := p.GenerateAllGameImages(context.Background(), fileID, imagepipeline.Options{GenerateNPCs: true})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.NPCs)
}

func TestGenerateAllGameImages_OnlyRequestedFamiliesRun(t *testing.T) {
	srv := testPNGServer(t)
	st, fileID := newTestStore(t)
	assetDir := t.TempDir()

	fake := &llmclient.Fake{Images: []string{srv.URL}}
	p := imagepipeline.New(fake, st, assetDir)

	result, err := p.GenerateAllGameImages(context.Background(), fileID, imagepipeline.Options{GenerateWorld: true})
	require.NoError(t, err)
	assert.Empty(t, result.NPCs)
	assert.Empty(t, result.Scenes)
	assert.Empty(t, result.Buildings)
	assert.NotEmpty(t, result.World)
	assert.Empty(t, result.User)
}

func TestAssetPaths_AreNamespacedByFileID(t *testing.T) {
	srv := testPNGServer(t)
	st, fileID := newTestStore(t)
	assetDir := t.TempDir()

	fake := &llmclient.Fake{Images: []string{srv.URL}}
	p := imagepipeline.New(fake, st, assetDir)

	result, err := p.GenerateAllGameImages(context.Background(), fileID, imagepipeline.Options{GenerateWorld: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(assetDir, fileID, "world_world.png"), result.World)

	// no stray temp files left behind in the asset dir after cleanup
	entries, err := os.ReadDir(filepath.Join(assetDir, fileID))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
