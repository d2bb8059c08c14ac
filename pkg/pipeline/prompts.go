package pipeline

import (
	"fmt"
	"strings"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/pipeline/prompts"
)

// Prompts holds the system prompts for each LLM-backed stage.
type Prompts struct {
	Classify  string
	Translate string
	Narrate   string
	Respond   string
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Classify, err = loadPrompt("CLASSIFY.md"); err != nil {
		return nil, fmt.Errorf("failed to load CLASSIFY: %w", err)
	}
	if p.Translate, err = loadPrompt("TRANSLATE.md"); err != nil {
		return nil, fmt.Errorf("failed to load TRANSLATE: %w", err)
	}
	if p.Narrate, err = loadPrompt("NARRATE.md"); err != nil {
		return nil, fmt.Errorf("failed to load NARRATE: %w", err)
	}
	if p.Respond, err = loadPrompt("RESPOND.md"); err != nil {
		return nil, fmt.Errorf("failed to load RESPOND: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.FS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
