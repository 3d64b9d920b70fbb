package publisher

import (
	"fmt"
	"strings"
)

// Platform describes one publishing target's formatting and pacing rules.
type Platform struct {
	Name        string
	MaxChars    int
	MaxPerHour  int
	MaxPerDay   int
	HashtagRoom int
}

// Long-form platforms get generous ceilings, short-form high-velocity
// platforms tighter character limits but more posts per day.
var platforms = map[string]Platform{
	"linkedin": {Name: "linkedin", MaxChars: 3000, MaxPerHour: 2, MaxPerDay: 5, HashtagRoom: 80},
	"x":        {Name: "x", MaxChars: 280, MaxPerHour: 5, MaxPerDay: 25, HashtagRoom: 30},
	"threads":  {Name: "threads", MaxChars: 500, MaxPerHour: 4, MaxPerDay: 15, HashtagRoom: 40},
}

// PlatformFor resolves a platform by name, case-insensitively.
func PlatformFor(name string) (Platform, error) {
	p, ok := platforms[strings.ToLower(name)]
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform %q", name)
	}
	return p, nil
}

// Platforms returns the registered platform names.
func Platforms() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	return names
}
