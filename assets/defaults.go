package assets

import (
	_ "embed"
)

// DefaultGuardrailYAML contains the embedded default guardrail rules, used
// whenever ~/.kmd/guardrail.yaml is absent or empty.
//
//go:embed defaults/guardrail.yaml
var DefaultGuardrailYAML []byte
