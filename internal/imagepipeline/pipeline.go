package imagepipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"llmrpg/internal/logging"
	"llmrpg/internal/store"

	"go.uber.org/zap"
)

const (
	npcWidth      uint = 300
	sceneWidth    uint = 1000
	buildingWidth uint = 300
	portraitWidth uint = 500
)

// ImageGenerator is the subset of the LLM image client the pipeline needs;
// satisfied by llmclient.ImageGenerator (spec §4.4).
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, size, quality string) (string, error)
}

// Options selects which asset families to (re)generate (spec §4.9).
type Options struct {
	GenerateNPCs      bool
	GenerateScenes    bool
	GenerateBuildings bool
	GenerateWorld     bool
	GenerateUser      bool
	UpdateJSON        bool
}

// Asset is one generated-and-persisted image.
type Asset struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Result is generateAllGameImages's return value (spec §4.9).
type Result struct {
	NPCs      []Asset `json:"npcs"`
	Scenes    []Asset `json:"scenes"`
	Buildings []Asset `json:"buildings"`
	World     string  `json:"world,omitempty"`
	User      string  `json:"user,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Pipeline generates and persists the visual assets for a fileId's world.
type Pipeline struct {
	gen      ImageGenerator
	store    *store.Store
	assetDir string
}

// New builds a Pipeline writing scaled assets under assetDir.
func New(gen ImageGenerator, st *store.Store, assetDir string) *Pipeline {
	return &Pipeline{gen: gen, store: st, assetDir: assetDir}
}

// GenerateAllGameImages dispatches every requested element family concurrently
// (bounded only by the LLM client's own connection pool, per spec §4.9), then
// persists the updated scenes document if opts.UpdateJSON is set.
func (p *Pipeline) GenerateAllGameImages(ctx context.Context, fileID string, opts Options) (*Result, error) {
	var lore store.Lore
	if err := p.store.LoadTemplate(fileID, store.DocLore, &lore); err != nil {
		return nil, err
	}
	var player store.Player
	_ = p.store.LoadTemplate(fileID, store.DocPlayer, &player)
	scenes := store.Scenes{}
	if err := p.store.LoadTemplate(fileID, store.DocScenes, &scenes); err != nil {
		return nil, err
	}

	lc := buildLoreContext(lore)
	result := &Result{}
	var mu sync.Mutex
	addErr := func(format string, args ...any) {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if opts.GenerateNPCs {
		for sceneID, scene := range scenes {
			if scene == nil {
				continue
			}
			for i := range scene.NPCs {
				npc := &scene.NPCs[i]
				sceneID := sceneID
				eg.Go(func() error {
					dest := p.assetPath(fileID, "npc", npc.ID)
					if err := p.generateOne(egCtx, npcPrompt(lc, *npc), dest, npcWidth); err != nil {
						addErr("npc %s (scene %s): %v", npc.ID, sceneID, err)
						return nil
					}
					mu.Lock()
					result.NPCs = append(result.NPCs, Asset{ID: npc.ID, Path: dest})
					mu.Unlock()
					if opts.UpdateJSON {
						npc.Icon = dest
					}
					return nil
				})
			}
		}
	}

	if opts.GenerateScenes {
		for sceneID, scene := range scenes {
			if scene == nil {
				continue
			}
			sceneID, scene := sceneID, scene
			eg.Go(func() error {
				dest := p.assetPath(fileID, "scene", sceneID)
				if err := p.generateOne(egCtx, scenePrompt(lc, scene.Name, scene.Description), dest, sceneWidth); err != nil {
					addErr("scene %s: %v", sceneID, err)
					return nil
				}
				mu.Lock()
				result.Scenes = append(result.Scenes, Asset{ID: sceneID, Path: dest})
				mu.Unlock()
				if opts.UpdateJSON {
					scene.Background = dest
				}
				return nil
			})
		}
	}

	if opts.GenerateBuildings {
		for sceneID, scene := range scenes {
			if scene == nil {
				continue
			}
			for i := range scene.Buildings {
				b := &scene.Buildings[i]
				sceneID := sceneID
				eg.Go(func() error {
					dest := p.assetPath(fileID, "building", b.ID)
					if err := p.generateOne(egCtx, buildingPrompt(lc, *b), dest, buildingWidth); err != nil {
						addErr("building %s (scene %s): %v", b.ID, sceneID, err)
						return nil
					}
					mu.Lock()
					result.Buildings = append(result.Buildings, Asset{ID: b.ID, Path: dest})
					mu.Unlock()
					if opts.UpdateJSON {
						b.Icon = dest
					}
					return nil
				})
			}
		}
	}

	if opts.GenerateWorld {
		eg.Go(func() error {
			dest := p.assetPath(fileID, "world", "world")
			if err := p.generateOne(egCtx, worldPrompt(lc, lore.Title), dest, portraitWidth); err != nil {
				addErr("world: %v", err)
				return nil
			}
			mu.Lock()
			result.World = dest
			mu.Unlock()
			return nil
		})
	}

	if opts.GenerateUser {
		eg.Go(func() error {
			dest := p.assetPath(fileID, "user", "user")
			if err := p.generateOne(egCtx, userPrompt(lc, player.Profile.Name), dest, portraitWidth); err != nil {
				addErr("user: %v", err)
				return nil
			}
			mu.Lock()
			result.User = dest
			mu.Unlock()
			return nil
		})
	}

	// Every Go func above swallows its own error into result.Errors and
	// returns nil, so Wait never reports an error; this check is defensive.
	if err := eg.Wait(); err != nil {
		logging.Warn("image pipeline context ended early", zap.String("fileId", fileID), zap.Error(err))
	}

	if opts.UpdateJSON {
		if err := p.store.SaveTemplate(fileID, store.DocScenes, &scenes); err != nil {
			addErr("persist scenes: %v", err)
		}
	}

	return result, nil
}

func (p *Pipeline) generateOne(ctx context.Context, prompt, destPath string, width uint) error {
	url, err := p.gen.GenerateImage(ctx, prompt, "1024x1024", "standard")
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return fetchAndScale(url, destPath, width)
}

func (p *Pipeline) assetPath(fileID, kind, id string) string {
	return AssetPath(p.assetDir, fileID, kind, id)
}

// AssetPath computes the on-disk path for one generated asset, exported so
// HTTP handlers can serve an asset already referenced from a saved scenes/
// lore document without needing a Pipeline instance (spec §6 "world/player/
// scene/icon/avatar fetch").
func AssetPath(assetDir, fileID, kind, id string) string {
	return filepath.Join(assetDir, fileID, kind+"_"+id+".png")
}
