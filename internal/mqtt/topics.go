package mqtt

import "github.com/cjeanneret/iriscam/internal/registry"

// Topics builds topic names under a configured prefix.
//
//	<prefix>/state           retained lifecycle payloads
//	<prefix>/focus_exposure  retained focus/exposure payloads
//	<prefix>/lenses/get      lens list requests
//	<prefix>/lenses          lens list replies
type Topics struct {
	Prefix string
}

func (t Topics) State() string         { return t.Prefix + "/state" }
func (t Topics) FocusExposure() string { return t.Prefix + "/focus_exposure" }
func (t Topics) LensesGet() string     { return t.Prefix + "/lenses/get" }
func (t Topics) Lenses() string        { return t.Prefix + "/lenses" }

// ForChannel maps a registry channel to its publish topic.
func (t Topics) ForChannel(channel string) (string, bool) {
	switch channel {
	case registry.ChannelState:
		return t.State(), true
	case registry.ChannelFocusExposure:
		return t.FocusExposure(), true
	default:
		return "", false
	}
}
