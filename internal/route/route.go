package route

import "regexp"

var gamePath = regexp.MustCompile(`^/(\w{64})$`)

// Route is where a path leads: Create, Play or Invalid.
type Route interface{ isRoute() }

// Create is the new game form at the root.
type Create struct{}

// Play is an existing game.
type Play struct{ GameID string }

// Invalid is anything else.
type Invalid struct{ Path string }

func (Create) isRoute()  {}
func (Play) isRoute()    {}
func (Invalid) isRoute() {}

func Parse(path string) Route {
	if path == "/" {
		return Create{}
	}
	if m := gamePath.FindStringSubmatch(path); m != nil {
		return Play{GameID: m[1]}
	}
	return Invalid{Path: path}
}
