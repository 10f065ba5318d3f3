// Package hotkey binds the global activation chord and turns key presses
// into toggle events for the engine.
package hotkey

import (
	"fmt"
	"strings"

	xhotkey "golang.design/x/hotkey"
)

// Combo is a parsed activation chord: at least one modifier plus a final key.
type Combo struct {
	Mods []xhotkey.Modifier
	Key  xhotkey.Key

	spec string
}

// ParseCombo parses a chord spec such as "ctrl+shift+space". Accepted
// modifiers are ctrl, shift, alt and super (cmd and win are aliases);
// the final segment must be a key name. Matching is case-insensitive
// and whitespace around segments is ignored.
func ParseCombo(spec string) (Combo, error) {
	segments := strings.Split(spec, "+")
	if len(segments) < 2 {
		return Combo{}, fmt.Errorf("hotkey %q: need at least one modifier and a key", spec)
	}

	combo := Combo{spec: spec}
	seen := map[xhotkey.Modifier]bool{}
	for _, segment := range segments[:len(segments)-1] {
		name := strings.ToLower(strings.TrimSpace(segment))
		mod, ok := modifierNames[name]
		if !ok {
			return Combo{}, fmt.Errorf("hotkey %q: unknown modifier %q", spec, name)
		}
		if seen[mod] {
			return Combo{}, fmt.Errorf("hotkey %q: duplicate modifier %q", spec, name)
		}
		seen[mod] = true
		combo.Mods = append(combo.Mods, mod)
	}

	keyName := strings.ToLower(strings.TrimSpace(segments[len(segments)-1]))
	key, ok := keyNames[keyName]
	if !ok {
		return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", spec, keyName)
	}
	combo.Key = key
	return combo, nil
}

// String returns the spec the combo was parsed from.
func (c Combo) String() string { return c.spec }

var keyNames = map[string]xhotkey.Key{
	"space": xhotkey.KeySpace,
	"enter": xhotkey.KeyReturn,
	"tab":   xhotkey.KeyTab,

	"a": xhotkey.KeyA, "b": xhotkey.KeyB, "c": xhotkey.KeyC,
	"d": xhotkey.KeyD, "e": xhotkey.KeyE, "f": xhotkey.KeyF,
	"g": xhotkey.KeyG, "h": xhotkey.KeyH, "i": xhotkey.KeyI,
	"j": xhotkey.KeyJ, "k": xhotkey.KeyK, "l": xhotkey.KeyL,
	"m": xhotkey.KeyM, "n": xhotkey.KeyN, "o": xhotkey.KeyO,
	"p": xhotkey.KeyP, "q": xhotkey.KeyQ, "r": xhotkey.KeyR,
	"s": xhotkey.KeyS, "t": xhotkey.KeyT, "u": xhotkey.KeyU,
	"v": xhotkey.KeyV, "w": xhotkey.KeyW, "x": xhotkey.KeyX,
	"y": xhotkey.KeyY, "z": xhotkey.KeyZ,

	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2,
	"3": xhotkey.Key3, "4": xhotkey.Key4, "5": xhotkey.Key5,
	"6": xhotkey.Key6, "7": xhotkey.Key7, "8": xhotkey.Key8,
	"9": xhotkey.Key9,

	"f1": xhotkey.KeyF1, "f2": xhotkey.KeyF2, "f3": xhotkey.KeyF3,
	"f4": xhotkey.KeyF4, "f5": xhotkey.KeyF5, "f6": xhotkey.KeyF6,
	"f7": xhotkey.KeyF7, "f8": xhotkey.KeyF8, "f9": xhotkey.KeyF9,
	"f10": xhotkey.KeyF10, "f11": xhotkey.KeyF11, "f12": xhotkey.KeyF12,
}
