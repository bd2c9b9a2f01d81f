package shell

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BTreeMap/BioFlow/internal/models"
)

// NoData is shown for an empty tool result.
const NoData = "No data returned."

// FormatToolResult renders a tool response. The first recognised field wins,
// in the order supplements, foods, interaction, recipe, pairings, response and
// definition; anything else is printed as "KEY NAME: value" lines.
func FormatToolResult(data map[string]any) string {
	if data == nil {
		return NoData
	}
	if v, ok := data["supplements"]; ok && present(v) {
		var lines []string
		for _, item := range asList(v) {
			m, _ := item.(map[string]any)
			lines = append(lines, fmt.Sprintf("• %s: %s", text(m["name"]), text(m["reason"])))
		}
		return strings.Join(lines, "\n")
	}
	if v, ok := data["foods"]; ok && present(v) {
		return bullets(asList(v))
	}
	if v, ok := data["interaction"]; ok && present(v) {
		return fmt.Sprintf("Status: %s\n%s", text(v), text(data["details"]))
	}
	if v, ok := data["recipe"]; ok && present(v) {
		return fmt.Sprintf("Recipe: %s\n%s", text(v), text(data["changes"]))
	}
	if v, ok := data["pairings"]; ok && present(v) {
		return bullets(asList(v))
	}
	if v, ok := data["response"]; ok && present(v) {
		return text(v)
	}
	if v, ok := data["definition"]; ok && present(v) {
		return text(v)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(strings.ReplaceAll(k, "_", " ")), text(data[k]))
	}
	return b.String()
}

// present reports whether a JSON value counts as set: lists and objects always
// do, scalars only when non-zero.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

func bullets(items []any) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "• " + text(it)
	}
	return strings.Join(lines, "\n")
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// ShoppingListText renders the list as downloadable plain text. Categories are
// sorted by name.
func ShoppingListText(list models.ShoppingList) string {
	var b strings.Builder
	b.WriteString("BIOFLOW SHOPPING LIST\n=====================\n\n")
	cats := make([]string, 0, len(list))
	for c := range list {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "[ %s ]\n", strings.ToUpper(c))
		for _, item := range list[c] {
			fmt.Fprintf(&b, " - %s\n", item)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CalendarDays is the length of the date strip.
const CalendarDays = 14

// CalendarDay is one cell of the date strip.
type CalendarDay struct {
	Day      string `json:"day" yaml:"day"`
	Date     int    `json:"date" yaml:"date"`
	FullDate string `json:"full_date" yaml:"full_date"`
	Active   bool   `json:"active" yaml:"active"`
}

// Calendar returns the next CalendarDays days starting today. The day matching
// selected is active; with no match the first day is.
func Calendar(now time.Time, selected string) []CalendarDay {
	days := make([]CalendarDay, CalendarDays)
	found := false
	for i := range days {
		y, m, d := now.Date()
		t := time.Date(y, m, d+i, 0, 0, 0, 0, now.Location())
		full := t.Format(models.DateLayout)
		active := full == selected
		found = found || active
		days[i] = CalendarDay{
			Day:      t.Weekday().String()[:3],
			Date:     t.Day(),
			FullDate: full,
			Active:   active,
		}
	}
	if !found {
		days[0].Active = true
	}
	return days
}

var toolIcons = map[string]string{
	"quick_snack":            "🍎",
	"check_food_interaction": "⚠️",
	"recipe_variation":       "🍲",
	"seasonal_swap":          "🍂",
	"budget_swap":            "💰",
	"leftover_idea":          "🥡",
	"flavor_pairing":         "👩‍🍳",
	"mood_food":              "🎭",
	"low_gi_option":          "📉",
	"high_protein_option":    "💪",
}

// ToolIcon returns the icon for a tool id, or a sparkle for unlisted tools.
func ToolIcon(id string) string {
	if icon, ok := toolIcons[id]; ok {
		return icon
	}
	return "✨"
}

// MealIcon picks an icon from keywords in the meal type.
func MealIcon(mealType string) string {
	t := strings.ToLower(mealType)
	switch {
	case strings.Contains(t, "breakfast"):
		return "🍳"
	case strings.Contains(t, "lunch"):
		return "🥗"
	case strings.Contains(t, "dinner"):
		return "🍽️"
	case strings.Contains(t, "snack"):
		return "🥜"
	case strings.Contains(t, "pre"):
		return "⚡"
	case strings.Contains(t, "post"):
		return "🥛"
	}
	return "🍴"
}
