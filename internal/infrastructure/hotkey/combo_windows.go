//go:build windows

package hotkey

import xhotkey "golang.design/x/hotkey"

var modifierNames = map[string]xhotkey.Modifier{
	"ctrl":  xhotkey.ModCtrl,
	"shift": xhotkey.ModShift,
	"alt":   xhotkey.ModAlt,
	"super": xhotkey.ModWin,
	"cmd":   xhotkey.ModWin,
	"win":   xhotkey.ModWin,
}
