//go:build linux

package hotkey

import xhotkey "golang.design/x/hotkey"

// X11 reports alt as Mod1 and super as Mod4.
var modifierNames = map[string]xhotkey.Modifier{
	"ctrl":  xhotkey.ModCtrl,
	"shift": xhotkey.ModShift,
	"alt":   xhotkey.Mod1,
	"super": xhotkey.Mod4,
	"cmd":   xhotkey.Mod4,
	"win":   xhotkey.Mod4,
}
