package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/judge.txt
	judgeRaw string

	//go:embed template/reviser.txt
	reviserRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Judge   string
	Reviser string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Judge:   strings.TrimSpace(judgeRaw),
		Reviser: strings.TrimSpace(reviserRaw),
	}
}
