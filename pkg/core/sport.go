// pkg/core/sport.go
package core

import "strings"

// Sport is a practice category with its supported actions.
type Sport struct {
	Name    string
	Slug    string
	Actions []string
}

// Sports is the catalog offered by the app.
var Sports = []Sport{
	{Name: "Create", Slug: "create", Actions: []string{"Custom motion"}},
	{Name: "Basketball", Slug: "basketball", Actions: []string{"Jump Shot", "Free Throw"}},
	{Name: "Soccer", Slug: "soccer", Actions: []string{"Free Kick", "Throw In"}},
	{Name: "Volleyball", Slug: "volleyball", Actions: []string{"Spike", "Volley"}},
	{Name: "Baseball", Slug: "baseball", Actions: []string{"Swing", "Pitch"}},
	{Name: "Bowling", Slug: "bowling", Actions: []string{"Bowl"}},
	{Name: "Hockey", Slug: "hockey", Actions: []string{"Shot", "Dribble"}},
	{Name: "Golf", Slug: "golf", Actions: []string{"Swing"}},
}

// LookupSport finds a sport by slug or display name, case-insensitively.
func LookupSport(name string) (Sport, bool) {
	for _, s := range Sports {
		if strings.EqualFold(s.Slug, name) || strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Sport{}, false
}

// ActionLabel converts a display action name into its label ("Jump Shot" -> "jump-shot").
func ActionLabel(action string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(action)), " ", "-")
}

// Labels returns the closed label vocabulary for the sport, "unknown" last.
func (s Sport) Labels() []string {
	out := make([]string, 0, len(s.Actions)+1)
	for _, a := range s.Actions {
		out = append(out, ActionLabel(a))
	}
	return append(out, LabelUnknown)
}

// Supports reports whether the action (display name or label) belongs to the sport.
func (s Sport) Supports(action string) bool {
	label := ActionLabel(action)
	for _, a := range s.Actions {
		if ActionLabel(a) == label {
			return true
		}
	}
	return false
}

// ReferenceKey identifies an ideal sequence by sport and action label.
func ReferenceKey(sport, action string) string {
	return strings.ToLower(strings.TrimSpace(sport)) + "/" + ActionLabel(action)
}
