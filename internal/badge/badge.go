// Package badge enumerates the achievement markers a user can earn.
package badge

import "fmt"

// Badge is stored by its identifier string.
type Badge string

const (
	GreenStarter  Badge = "greenStarter"
	EcoGuardian   Badge = "ecoGuardian"
	TreePlanter   Badge = "treePlanter"
	CommunityHero Badge = "communityHero"
)

// Info is the display metadata for a badge.
type Info struct {
	Icon string `json:"icon"`
	Name string `json:"name"`
}

var catalog = map[Badge]Info{
	GreenStarter:  {Icon: "🌱", Name: "Green Starter"},
	EcoGuardian:   {Icon: "🛡️", Name: "Eco Guardian"},
	TreePlanter:   {Icon: "🌳", Name: "Tree Planter"},
	CommunityHero: {Icon: "🦸", Name: "Community Hero"},
}

func All() []Badge {
	return []Badge{GreenStarter, EcoGuardian, TreePlanter, CommunityHero}
}

func (b Badge) Valid() bool {
	_, ok := catalog[b]
	return ok
}

// Info falls back to a trophy with the raw identifier for badges this build
// does not know about.
func (b Badge) Info() Info {
	if info, ok := catalog[b]; ok {
		return info
	}
	return Info{Icon: "🏆", Name: string(b)}
}

func (b Badge) String() string {
	return string(b)
}

func Parse(value string) (Badge, error) {
	b := Badge(value)
	if !b.Valid() {
		return "", fmt.Errorf("unknown badge %q", value)
	}
	return b, nil
}
