//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Replays the archive in ./testdata/archive with a pipeline cache.
func (Run) Replay() error {
	fmt.Println("Run replayer...")
	if _, err := executeCmd("go",
		withArgs("run", ".", "--pipeline-cache", "testdata/archive"),
		withStream()); err != nil {
		return err
	}
	return nil
}
