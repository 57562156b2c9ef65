//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the live preview over the package described by kiln.toml.
func (Run) Preview() error {
	fmt.Println("Run preview...")
	if _, err := executeCmd("go", withArgs("run", ".", "preview", "-config", "kiln.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
