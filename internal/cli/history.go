package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sopgraph/internal/llm"
)

// Conversation history persists across CLI invocations so follow-up
// questions keep their context. Stored per session next to the user's
// cache, trimmed to the last few exchanges.
const historyKeep = 12

func historyPath(session string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "sopgraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("history_%s.json", session)), nil
}

func readHistoryFile(session string) ([]llm.Turn, error) {
	path, err := historyPath(session)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var turns []llm.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		// A corrupt history file is discarded rather than blocking asks.
		return nil, nil
	}
	return turns, nil
}

func appendHistoryFile(session string, turns []llm.Turn) error {
	existing, err := readHistoryFile(session)
	if err != nil {
		return err
	}
	all := append(existing, turns...)
	if len(all) > historyKeep {
		all = all[len(all)-historyKeep:]
	}

	path, err := historyPath(session)
	if err != nil {
		return err
	}
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
