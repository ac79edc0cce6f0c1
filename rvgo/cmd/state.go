package cmd

import (
	"fmt"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/z2l-emu/z2l/rvgo/env"
)

func restoreState(e *env.Environment, path string) error {
	state, err := jsonutil.LoadJSON[env.State](path)
	if err != nil {
		return fmt.Errorf("failed to load state %q: %w", path, err)
	}
	if err := e.Restore(state); err != nil {
		return fmt.Errorf("failed to restore state %q: %w", path, err)
	}
	return nil
}

func saveState(e *env.Environment, path string) error {
	if err := jsonutil.WriteJSON(path, e.Save(), OutFilePerm); err != nil {
		return fmt.Errorf("failed to write state %q: %w", path, err)
	}
	return nil
}
