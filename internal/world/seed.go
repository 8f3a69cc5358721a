package world

// The office floor is a fixed 400x300 layout. Positions are clamped to area
// bounds with a margin so NPCs never render on a wall.
const (
	WorldWidth     = 400.0
	WorldHeight    = 300.0
	MovementMargin = 20.0
)

// DefaultAreas returns the office floor plan.
func DefaultAreas() []Area {
	return []Area{
		{ID: "office", Name: "Office", Bounds: Bounds{X: 0, Y: 0, W: 200, H: 150}},
		{ID: "lounge", Name: "Lounge", Bounds: Bounds{X: 200, Y: 0, W: 200, H: 150}},
		{ID: "bedroom", Name: "Bedroom", Bounds: Bounds{X: 0, Y: 150, W: 133, H: 150}},
		{ID: "bathroom", Name: "Bathroom", Bounds: Bounds{X: 133, Y: 150, W: 133, H: 150}},
		{ID: "kitchen", Name: "Kitchen", Bounds: Bounds{X: 266, Y: 150, W: 134, H: 150}},
	}
}

// DefaultObjects returns the anchor objects actions bind to.
func DefaultObjects() []Object {
	return []Object{
		{ID: "pc", Name: "PC", AreaID: "office"},
		{ID: "bed", Name: "Bed", AreaID: "bedroom"},
		{ID: "toothbrush", Name: "Toothbrush", AreaID: "bathroom"},
		{ID: "tv", Name: "TV", AreaID: "lounge"},
		{ID: "couch", Name: "Couch", AreaID: "lounge"},
		{ID: "coffee_table", Name: "Coffee Table", AreaID: "kitchen"},
	}
}

// DefaultActionDefs returns the closed action vocabulary. The last three are
// priority actions injected by world events, never offered to the planner.
func DefaultActionDefs() []ActionDef {
	return []ActionDef{
		{ID: "sleep", Title: "Sleep", Emoji: "\U0001F634", BaseMinutes: 480},
		{ID: "brush_teeth", Title: "Brush Teeth", Emoji: "\U0001FAA5", BaseMinutes: 15},
		{ID: "work", Title: "Work", Emoji: "\U0001F4BB", BaseMinutes: 120},
		{ID: "eat", Title: "Eat", Emoji: "\U0001F37D️", BaseMinutes: 45},
		{ID: "walk", Title: "Walk", Emoji: "\U0001F6B6", BaseMinutes: 30},
		{ID: "chat", Title: "Chat", Emoji: "\U0001F4AC", BaseMinutes: 30},
		{ID: "relax", Title: "Relax", Emoji: "\U0001F60C", BaseMinutes: 60},
		{ID: "read", Title: "Read", Emoji: "\U0001F4D6", BaseMinutes: 60},
		{ID: "nap", Title: "Nap", Emoji: "\U0001F4A4", BaseMinutes: 60},
		{ID: "explore", Title: "Explore", Emoji: "\U0001F9ED", BaseMinutes: 45},
		{ID: "watch_tv", Title: "Watch TV", Emoji: "\U0001F4FA", BaseMinutes: 90},
		{ID: "relax_on_couch", Title: "Relax on Couch", Emoji: "\U0001F6CB️", BaseMinutes: 60},
		{ID: "have_coffee", Title: "Have Coffee", Emoji: "☕", BaseMinutes: 20},
		{ID: "evacuate", Title: "Evacuate", Emoji: "\U0001F6A8", BaseMinutes: 30},
		{ID: "get_pizza", Title: "Get Pizza", Emoji: "\U0001F355", BaseMinutes: 15},
		{ID: "complain_wifi", Title: "Complain about Wi-Fi", Emoji: "\U0001F4F5", BaseMinutes: 30},
	}
}

// ObjectBindings maps action titles to the object they happen at. Unbound
// actions run wherever the NPC is standing.
func ObjectBindings() map[string]string {
	return map[string]string{
		"Work":           "PC",
		"Sleep":          "Bed",
		"Brush Teeth":    "Toothbrush",
		"Watch TV":       "TV",
		"Relax on Couch": "Couch",
		"Have Coffee":    "Coffee Table",
	}
}

// PriorityTitles is the set of actions only world events may schedule.
func PriorityTitles() map[string]bool {
	return map[string]bool{
		"Evacuate":             true,
		"Get Pizza":            true,
		"Complain about Wi-Fi": true,
	}
}
