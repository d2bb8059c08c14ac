package insight

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed hypotheses.json
var embeddedLibrary []byte

// Hypothesis is a predefined candidate business explanation. The library
// is loaded once at startup and never mutated.
type Hypothesis struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	BusinessImplication string   `json:"business_implication"`
	RequiredSignals     []Signal `json:"required_signals"`
	SupportingSignals   []Signal `json:"supporting_signals"`
}

type library struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
}

// LoadLibrary parses the embedded hypothesis library.
func LoadLibrary() ([]Hypothesis, error) {
	return parseLibrary(embeddedLibrary)
}

// LoadLibraryFile parses a hypothesis library from disk, for deployments
// that override the built-in one.
func LoadLibraryFile(path string) ([]Hypothesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hypothesis library: %w", err)
	}
	return parseLibrary(data)
}

func parseLibrary(data []byte) ([]Hypothesis, error) {
	var lib library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse hypothesis library: %w", err)
	}
	if len(lib.Hypotheses) == 0 {
		return nil, fmt.Errorf("hypothesis library is empty")
	}
	for _, h := range lib.Hypotheses {
		for _, sig := range append(append([]Signal{}, h.RequiredSignals...), h.SupportingSignals...) {
			if !Vocabulary[sig] {
				return nil, fmt.Errorf("hypothesis %s references unknown signal %q", h.ID, sig)
			}
		}
	}
	return lib.Hypotheses, nil
}
