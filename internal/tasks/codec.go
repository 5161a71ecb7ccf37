package tasks

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"

	"calplan/internal/model"
)

const documentVersion = 1

type document struct {
	Version int          `json:"version"`
	Tasks   []model.Task `json:"tasks"`
}

func encode(ts []model.Task) ([]byte, error) {
	if ts == nil {
		ts = []model.Task{}
	}
	return sonic.ConfigStd.Marshal(document{Version: documentVersion, Tasks: ts})
}

// decode accepts the versioned document or a bare array of tasks.
func decode(data []byte) ([]model.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var ts []model.Task
		if err := sonic.ConfigStd.Unmarshal(trimmed, &ts); err != nil {
			return nil, err
		}
		return ts, checkUnique(ts)
	}

	var doc document
	if err := sonic.ConfigStd.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("unsupported task document version %d", doc.Version)
	}
	return doc.Tasks, checkUnique(doc.Tasks)
}

func checkUnique(ts []model.Task) error {
	seen := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
