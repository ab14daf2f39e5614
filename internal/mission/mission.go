// Package mission implements the Mission Engine (spec §4.8): generation
// cadence, path-based submission, reward application, and storyline
// blocking. Grounded on the teacher's absence of any quest system — this
// package generalizes the teacher's plain-struct persistence style
// (internal/app/router.go's GameSession) into its own document shape, and
// borrows the path/requirement idea from the original_source mission
// design notes referenced by SPEC_FULL.md.
package mission

// Type distinguishes story-blocking missions from side missions.
type Type string

const (
	TypeStory Type = "story"
	TypeSide  Type = "side"
)

// Status is the mission lifecycle (spec §4.8).
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// ItemRequirement names a quantity of a named item (by case-insensitive
// match, per spec §4.8).
type ItemRequirement struct {
	Name string `json:"name" yaml:"name"`
	Qty  int    `json:"qty" yaml:"qty"`
}

// RelationshipRequirement requires network[NPC] >= MinLevel.
type RelationshipRequirement struct {
	NPC      string `json:"npc" yaml:"npc"`
	MinLevel int    `json:"minLevel" yaml:"minLevel"`
}

// Requirements is the gate a Path must satisfy to complete (spec §4.8); the
// same shape doubles as Rewards, applied symmetrically on success.
type Requirements struct {
	Items         []ItemRequirement         `json:"items,omitempty" yaml:"items,omitempty"`
	CurrencyDelta int                       `json:"currencyDelta,omitempty" yaml:"currencyDelta,omitempty"`
	Relationships []RelationshipRequirement `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Location      string                    `json:"location,omitempty" yaml:"location,omitempty"`
	Flags         map[string]any            `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// Path is one way to satisfy a mission; the first fully-satisfied path wins
// ties resolved by definition order (spec §4.8).
type Path struct {
	Name         string       `json:"name" yaml:"name"`
	Requirements Requirements `json:"requirements" yaml:"requirements"`
	Rewards      Requirements `json:"rewards" yaml:"rewards"`
}

// Mission is one quest thread attached to a session.
type Mission struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	Type          Type   `json:"type" yaml:"type"`
	Description   string `json:"description" yaml:"description"`
	Status        Status `json:"status" yaml:"status"`
	Paths         []Path `json:"paths" yaml:"paths"`
	CompletedPath string `json:"completedPath,omitempty" yaml:"completedPath,omitempty"`
}

// PathResult reports one path's evaluation during a submit call.
type PathResult struct {
	PathName            string   `json:"pathName"`
	Completed           bool     `json:"completed"`
	Details             string   `json:"details"`
	MissingRequirements []string `json:"missingRequirements,omitempty"`
}

// SubmitResult is the response shape for submitMission (spec §4.8).
type SubmitResult struct {
	Completed     bool         `json:"completed"`
	CompletedPath string       `json:"completedPath,omitempty"`
	PathResults   []PathResult `json:"pathResults"`
}

// StorylineStatus is the synchronous read exposed by storylineStatus
// (spec §4.8).
type StorylineStatus struct {
	Blocked              bool     `json:"blocked"`
	Mission              *Mission `json:"mission,omitempty"`
	HasActiveStoryMission bool    `json:"hasActiveStoryMission"`
}
