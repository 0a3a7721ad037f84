package threshold

import "encoding/json"

// transcriptEntry mirrors the subset of an agent transcript line we care
// about: assistant-turn boundaries carrying token usage figures.
type transcriptEntry struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens              int `json:"input_tokens"`
			CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int `json:"cache_read_input_tokens"`
			OutputTokens             int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// ParseUsage extracts the context-window token total from one transcript
// line. It returns ok=false for lines that are not assistant-turn boundaries
// with a usage figure (tool results, user turns, malformed lines); those are
// skipped by callers, never treated as errors.
func ParseUsage(line []byte) (tokens int, ok bool) {
	var entry transcriptEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return 0, false
	}
	if entry.Type != "assistant" {
		return 0, false
	}
	u := entry.Message.Usage
	total := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens + u.OutputTokens
	if total == 0 {
		return 0, false
	}
	return total, true
}
