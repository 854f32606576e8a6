package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Engine names one of the supported browser engines.
type Engine string

const (
	EngineChromium Engine = "chromium"
	EngineFirefox  Engine = "firefox"
	EngineWebKit   Engine = "webkit"
)

// ErrUnsupportedEngine is returned when an engine name does not resolve to one
// of the known engines. Resolution happens before any resource is allocated,
// so an unsupported name never launches anything.
var ErrUnsupportedEngine = errors.New("unsupported browser engine")

// ErrSessionLaunch wraps browser, context, or page acquisition failures. These
// are the only fatal errors a session can hit after engine resolution.
var ErrSessionLaunch = errors.New("failed to acquire browser resources")

// ResolveEngine maps a user-supplied name to a known Engine. Matching is
// case-insensitive.
func ResolveEngine(name string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(name))) {
	case EngineChromium:
		return EngineChromium, nil
	case EngineFirefox:
		return EngineFirefox, nil
	case EngineWebKit:
		return EngineWebKit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, name)
}
