package content

import "strings"

// BaseHashtag is attached to every generated post
const BaseHashtag = "#PokemonTCG"

var hashtagRules = []struct {
	tag      string
	keywords []string
}{
	{"#DeckBuilding", []string{"deck"}},
	{"#PokemonTournament", []string{"tournament", "competitive"}},
	{"#PokemonPulls", []string{"pull", "pack"}},
}

// Hashtags picks tags for generated text. With extra disabled only the base
// tag is returned.
func Hashtags(text string, extra bool) []string {
	tags := []string{BaseHashtag}
	if !extra {
		return tags
	}
	lower := strings.ToLower(text)
	for _, rule := range hashtagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

// WithHashtags appends tags after a blank line
func WithHashtags(text string, tags []string) string {
	if len(tags) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(tags, " ")
}
