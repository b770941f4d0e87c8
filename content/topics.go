package content

// Topic is an entry of the simple topic catalogue
type Topic struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ContentTopic is a generation topic with example angles
type ContentTopic struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

var topics = []Topic{
	{ID: "pokemon_tcg", Name: "Pokemon TCG", Description: "General Pokemon TCG content"},
	{ID: "deck_building", Name: "Deck Building", Description: "Pokemon TCG deck building strategies"},
	{ID: "card_reveals", Name: "Card Reveals", Description: "New Pokemon card reveals and analysis"},
	{ID: "tournament_play", Name: "Tournament Play", Description: "Competitive Pokemon TCG content"},
}

var contentTopics = []ContentTopic{
	{
		ID:          "pokemon_tcg_general",
		Name:        "Pokemon TCG General",
		Description: "General Pokemon TCG discussion and enthusiasm",
		Examples:    []string{"Card collecting tips", "Deck building basics", "Tournament experience"},
	},
	{
		ID:          "card_pulls",
		Name:        "Card Pulls & Openings",
		Description: "Booster pack openings and rare card pulls",
		Examples:    []string{"Charizard pulls", "Alt art discoveries", "Booster box openings"},
	},
	{
		ID:          "market_analysis",
		Name:        "Market Analysis",
		Description: "Pokemon card market trends and pricing",
		Examples:    []string{"Price predictions", "Market trends", "Investment insights"},
	},
	{
		ID:          "deck_building",
		Name:        "Deck Building",
		Description: "Competitive deck strategies and builds",
		Examples:    []string{"Meta deck analysis", "Budget deck options", "Synergy combinations"},
	},
	{
		ID:          "tournaments",
		Name:        "Tournament Play",
		Description: "Competitive Pokemon TCG tournament content",
		Examples:    []string{"Tournament prep", "Meta predictions", "Competition analysis"},
	},
	{
		ID:          "collecting",
		Name:        "Collecting & Grading",
		Description: "Card collecting, grading, and preservation",
		Examples:    []string{"PSA grading tips", "Collection showcases", "Card condition guides"},
	},
	{
		ID:          "community",
		Name:        "Community & Culture",
		Description: "Pokemon TCG community and culture topics",
		Examples:    []string{"Community events", "Collector stories", "Nostalgia posts"},
	},
}

// Topics returns a copy of the simple catalogue
func Topics() []Topic {
	return append([]Topic(nil), topics...)
}

// ContentTopics returns a copy of the generation catalogue
func ContentTopics() []ContentTopic {
	out := make([]ContentTopic, len(contentTopics))
	for i, t := range contentTopics {
		t.Examples = append([]string(nil), t.Examples...)
		out[i] = t
	}
	return out
}
