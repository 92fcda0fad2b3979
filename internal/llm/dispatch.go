package llm

import "strings"

// Dispatch picks a Transport for a ModelID by its vendor prefix. Models
// with a native SDK integration (anthropic/, google/) get their own
// Transport; everything else falls back to the generic OpenAI-compatible
// gateway, per spec §3's "<vendor>/<model-name>" ModelID convention.
type Dispatch struct {
	anthropic Transport
	google    Transport
	fallback  Transport
}

// NewDispatch wires the three Transports built at startup. anthropic and
// google may be nil when their provider keys aren't configured, in which
// case their prefixes fall back to the generic gateway too.
func NewDispatch(fallback, anthropic, google Transport) *Dispatch {
	return &Dispatch{anthropic: anthropic, google: google, fallback: fallback}
}

func (d *Dispatch) transportFor(model ModelID) Transport {
	vendor, _, found := strings.Cut(string(model), "/")
	if found {
		switch vendor {
		case "anthropic":
			if d.anthropic != nil {
				return d.anthropic
			}
		case "google":
			if d.google != nil {
				return d.google
			}
		}
	}
	return d.fallback
}
