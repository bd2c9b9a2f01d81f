package models

import "time"

// Achievement ids.
const (
	AchievementWorkoutWarrior  = "workout_warrior"
	AchievementHydrationStreak = "hydration_streak"
	AchievementMindfulMaster   = "mindful_master"
	AchievementJournalKeeper   = "journal_keeper"
)

// Achievement tracks progress towards a badge.
type Achievement struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Progress int    `json:"progress"`
	Target   int    `json:"target"`
	Unlocked bool   `json:"unlocked"`
}

// DefaultAchievements returns the initial badge set.
func DefaultAchievements() map[string]Achievement {
	return map[string]Achievement{
		AchievementWorkoutWarrior:  {Name: "Workout Warrior", Icon: "🏋️", Target: 10},
		AchievementHydrationStreak: {Name: "Hydration Hero", Icon: "💧", Target: 7},
		AchievementMindfulMaster:   {Name: "Mindful Master", Icon: "🧘", Target: 60},
		AchievementJournalKeeper:   {Name: "Journal Keeper", Icon: "📓", Target: 7},
	}
}

// ActivityEntry is one line of the recent-activity feed.
type ActivityEntry struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
	Time   time.Time `json:"time"`
}

// ToastKind selects the toast style.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a transient notification.
type Toast struct {
	ID        string    `json:"id"`
	Kind      ToastKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolInput describes one input field of a tool.
type ToolInput struct {
	Key         string   `json:"k" yaml:"k"`
	Label       string   `json:"l" yaml:"l"`
	Placeholder string   `json:"p" yaml:"p"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// ToolDescriptor describes a biohack or fitness tool endpoint.
type ToolDescriptor struct {
	ID       string      `json:"id" yaml:"id"`
	Category string      `json:"category,omitempty" yaml:"category,omitempty"`
	Name     string      `json:"name" yaml:"name"`
	Desc     string      `json:"desc" yaml:"desc"`
	Inputs   []ToolInput `json:"inputs" yaml:"inputs"`
}
