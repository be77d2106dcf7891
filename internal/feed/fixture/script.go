package fixture

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
)

//go:embed default_match.yaml
var defaultScript []byte

// Frame is one scripted delivery. Document is merged onto the previous
// frame's document; Empty reports no live match without touching it.
type Frame struct {
	Empty    bool           `yaml:"empty"`
	Document map[string]any `yaml:"document"`
}

// Script is a replayable sequence of frames.
type Script struct {
	Interval time.Duration `yaml:"interval"`
	Loop     bool          `yaml:"loop"`
	Frames   []Frame       `yaml:"frames"`
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse fixture script: %w", err)
	}
	if len(s.Frames) == 0 {
		return Script{}, errors.New("parse fixture script: no frames")
	}
	return s, nil
}

// LoadScript reads a script from path, or the embedded default when path is empty.
func LoadScript(path string) (Script, error) {
	if path == "" {
		return DefaultScript()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read fixture script: %w", err)
	}
	return ParseScript(data)
}

// DefaultScript returns the embedded sample match.
func DefaultScript() (Script, error) {
	return ParseScript(defaultScript)
}

// step is a rendered frame: nil snapshot for empty frames.
type step struct {
	snapshot *match.Snapshot
}

// render folds the frames into full snapshots.
func (s Script) render() ([]step, error) {
	doc := map[string]any{}
	steps := make([]step, 0, len(s.Frames))
	for i, f := range s.Frames {
		if f.Empty {
			steps = append(steps, step{})
			continue
		}
		doc = mergeDocs(doc, f.Document)
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		snap, err := match.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		steps = append(steps, step{snapshot: &snap})
	}
	return steps, nil
}

// mergeDocs returns a copy of base with patch applied; nested maps merge
// recursively and everything else replaces.
func mergeDocs(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if pm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = mergeDocs(bm, pm)
				continue
			}
			out[k] = mergeDocs(nil, pm)
			continue
		}
		out[k] = v
	}
	return out
}
