//go:build darwin

package hotkey

import xhotkey "golang.design/x/hotkey"

var modifierNames = map[string]xhotkey.Modifier{
	"ctrl":  xhotkey.ModCtrl,
	"shift": xhotkey.ModShift,
	"alt":   xhotkey.ModOption,
	"super": xhotkey.ModCmd,
	"cmd":   xhotkey.ModCmd,
	"win":   xhotkey.ModCmd,
}
