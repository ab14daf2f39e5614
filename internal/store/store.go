package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"llmrpg/internal/apperr"
)

// DocKind names one of the four world JSON documents (spec §6).
type DocKind string

const (
	DocLore   DocKind = "lore"
	DocPlayer DocKind = "player"
	DocItems  DocKind = "items"
	DocScenes DocKind = "scenes"
)

var allDocKinds = []DocKind{DocLore, DocPlayer, DocItems, DocScenes}

// Bundle is the set of four world documents returned by
// MaterializeSessionFromTemplate.
type Bundle struct {
	Lore   *Lore
	Player *Player
	Items  ItemsCatalog
	Scenes Scenes
}

// Store is the Game Data Store contract (spec §4.1).
type Store struct {
	root string // DataDir

	// writeMu serializes the write-temp-then-rename sequence across all paths
	// so two concurrent writers never interleave renames of the same file.
	writeMu sync.Mutex
}

// New creates a Store rooted at dataDir, creating it if necessary.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{root: dataDir}, nil
}

func (s *Store) templateDir(fileID string) string {
	return filepath.Join(s.root, "templates", fileID)
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.root, "sessions", sessionID)
}

func (s *Store) templatePath(fileID string, kind DocKind) string {
	return filepath.Join(s.templateDir(fileID), string(kind)+".json")
}

func (s *Store) sessionPath(sessionID string, kind DocKind) string {
	return filepath.Join(s.sessionDir(sessionID), string(kind)+".json")
}

// HistoryPath is the auxiliary per-session narrative log (spec §6).
func (s *Store) HistoryPath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "history.json")
}

// NPCChatPath is the auxiliary per-session per-NPC chat transcript (spec §6).
func (s *Store) NPCChatPath(sessionID, npcID string) string {
	return filepath.Join(s.sessionDir(sessionID), "npc_chat", npcID+".json")
}

// SaveNPCChat persists npcID's chat transcript for sessionID (spec §6
// auxiliary storage, SPEC_FULL.md §4.13 supplemented NPC chat feature).
func (s *Store) SaveNPCChat(sessionID, npcID string, value any) error {
	return s.writeJSONAtomic(s.NPCChatPath(sessionID, npcID), value)
}

// LoadNPCChat loads npcID's chat transcript for sessionID, returning
// NotFound if the NPC has never been spoken to.
func (s *Store) LoadNPCChat(sessionID, npcID string, out any) error {
	return readJSON(s.NPCChatPath(sessionID, npcID), out)
}

// conversationStatePath is the persisted ConversationState snapshot, the
// "disk snapshot" recoverSession rehydrates from (spec §4.6).
func (s *Store) conversationStatePath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "conversation_state.json")
}

// SaveConversationState persists the session's conversation-state snapshot.
func (s *Store) SaveConversationState(sessionID string, value any) error {
	return s.writeJSONAtomic(s.conversationStatePath(sessionID), value)
}

// LoadConversationState loads the session's conversation-state snapshot.
func (s *Store) LoadConversationState(sessionID string, out any) error {
	return readJSON(s.conversationStatePath(sessionID), out)
}

// SaveHistory persists the full narrative log (spec §6 history_{sessionId}.json).
func (s *Store) SaveHistory(sessionID string, value any) error {
	return s.writeJSONAtomic(s.HistoryPath(sessionID), value)
}

// LoadHistory loads the full narrative log.
func (s *Store) LoadHistory(sessionID string, out any) error {
	return readJSON(s.HistoryPath(sessionID), out)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Wrap(apperr.NotFound, "document not found: "+path, err)
		}
		return apperr.Wrap(apperr.PersistenceFailure, "read document: "+path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "decode document: "+path, err)
	}
	return nil
}

// writeJSONAtomic writes to a temp file in the same directory then renames
// it over the destination, so concurrent readers never observe a partial
// write (spec §4.1 "atomic against concurrent readers").
func (s *Store) writeJSONAtomic(path string, value any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "create dir: "+dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "encode document: "+path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "rename temp file: "+path, err)
	}
	return nil
}

// LoadTemplate loads one document kind for a fileId into out.
func (s *Store) LoadTemplate(fileID string, kind DocKind, out any) error {
	return readJSON(s.templatePath(fileID, kind), out)
}

// SaveTemplate writes one document kind for a fileId.
func (s *Store) SaveTemplate(fileID string, kind DocKind, value any) error {
	return s.writeJSONAtomic(s.templatePath(fileID, kind), value)
}

// ExistsSession reports whether any session documents exist for sessionID.
func (s *Store) ExistsSession(sessionID string) bool {
	_, err := os.Stat(s.sessionPath(sessionID, DocPlayer))
	return err == nil
}

// LoadSession loads one document kind for a sessionId. Sessions must be
// materialized from their template first (MaterializeSessionFromTemplate);
// this returns NotFound for a sessionId that was never created.
func (s *Store) LoadSession(sessionID string, kind DocKind, out any) error {
	return readJSON(s.sessionPath(sessionID, kind), out)
}

// SaveSession writes one document kind for a sessionId (whole-document
// replacement, atomic against concurrent readers).
func (s *Store) SaveSession(sessionID string, kind DocKind, value any) error {
	return s.writeJSONAtomic(s.sessionPath(sessionID, kind), value)
}

// MaterializeSessionFromTemplate copies the four world JSONs from the
// template namespace into the session namespace, returning the cloned
// values (spec §4.1).
func (s *Store) MaterializeSessionFromTemplate(sessionID, fileID string) (*Bundle, error) {
	var lore Lore
	if err := s.LoadTemplate(fileID, DocLore, &lore); err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "template fileId not found: "+fileID, err)
	}
	var player Player
	if err := s.LoadTemplate(fileID, DocPlayer, &player); err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "template fileId not found: "+fileID, err)
	}
	items := ItemsCatalog{}
	if err := s.LoadTemplate(fileID, DocItems, &items); err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "template fileId not found: "+fileID, err)
	}
	scenes := Scenes{}
	if err := s.LoadTemplate(fileID, DocScenes, &scenes); err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "template fileId not found: "+fileID, err)
	}

	if err := s.SaveSession(sessionID, DocLore, &lore); err != nil {
		return nil, err
	}
	if err := s.SaveSession(sessionID, DocPlayer, &player); err != nil {
		return nil, err
	}
	if err := s.SaveSession(sessionID, DocItems, &items); err != nil {
		return nil, err
	}
	if err := s.SaveSession(sessionID, DocScenes, &scenes); err != nil {
		return nil, err
	}

	return &Bundle{Lore: &lore, Player: &player, Items: items, Scenes: scenes}, nil
}

// LoadBundle loads all four session documents at once.
func (s *Store) LoadBundle(sessionID string) (*Bundle, error) {
	var lore Lore
	if err := s.LoadSession(sessionID, DocLore, &lore); err != nil {
		return nil, err
	}
	var player Player
	if err := s.LoadSession(sessionID, DocPlayer, &player); err != nil {
		return nil, err
	}
	items := ItemsCatalog{}
	if err := s.LoadSession(sessionID, DocItems, &items); err != nil {
		return nil, err
	}
	scenes := Scenes{}
	if err := s.LoadSession(sessionID, DocScenes, &scenes); err != nil {
		return nil, err
	}
	return &Bundle{Lore: &lore, Player: &player, Items: items, Scenes: scenes}, nil
}

// TemplateExists reports whether a fileId has a template lore document.
func (s *Store) TemplateExists(fileID string) bool {
	_, err := os.Stat(s.templatePath(fileID, DocLore))
	return err == nil
}

// AllDocKinds exposes the four canonical document kinds.
func AllDocKinds() []DocKind { return allDocKinds }
