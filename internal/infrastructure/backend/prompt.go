package backend

import "strings"

// systemInstruction is the fixed framing wrapped around every user query.
// Models still disobey it often enough that CleanResponse exists.
const systemInstruction = "You are a command line expert. The user needs a terminal command. " +
	"Return ONLY the exact command string. Do not use markdown. Do not explain. " +
	"Do not add quotes. Example - User: 'list files' -> Response: ls -la"

// BuildPrompt renders the single-string prompt used by backends without a
// separate system role.
func BuildPrompt(query string) string {
	return systemInstruction + "\n\nUser request: " + query
}

// CleanResponse normalizes raw model output into one command line: code
// fences stripped, surrounding whitespace trimmed, and when the model still
// explains itself across several lines, the first non-empty line wins.
func CleanResponse(raw string) string {
	cleaned := raw
	for _, fence := range []string{"```bash", "```sh", "```shell", "```"} {
		cleaned = strings.ReplaceAll(cleaned, fence, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	for _, line := range strings.Split(cleaned, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
