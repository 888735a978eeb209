package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"misophonia/internal/fileutil"
)

// State records progress for one downloaded file in state_<file>.json next to it.
type State struct {
	Downloaded bool `json:"downloaded"`
	Unzipped   bool `json:"unzipped"`
}

func statePath(file string) string {
	return filepath.Join(filepath.Dir(file), "state_"+filepath.Base(file)+".json")
}

// ReadState returns the recorded state of file; absent state is the zero value.
func ReadState(file string) (State, error) {
	var st State
	data, err := os.ReadFile(statePath(file))
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse %s: %w", statePath(file), err)
	}
	return st, nil
}

func updateState(file string, fn func(*State)) error {
	st, err := ReadState(file)
	if err != nil {
		return err
	}
	fn(&st)
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(statePath(file), data)
}

// Complete reports whether every group of corpus has been downloaded and,
// for zip groups, extracted into dir.
func Complete(corpus Corpus, dir string) bool {
	for _, g := range corpus.Groups {
		for _, f := range g.Files {
			st, err := ReadState(filepath.Join(dir, f.FileName()))
			if err != nil || !st.Downloaded {
				return false
			}
		}
		if g.Unzip {
			base, _, err := splitParts(dir, g)
			if err != nil {
				return false
			}
			st, err := ReadState(base)
			if err != nil || !st.Unzipped {
				return false
			}
		}
	}
	return true
}
