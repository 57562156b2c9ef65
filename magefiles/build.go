//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Downloads the modules and builds the kiln binary into bin/.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("mod", "download"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/kiln", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Cooks the package described by kiln.toml for every target into build/<target>.
func (Build) Cook() error {
	mg.Deps(Build.Binary)
	for _, target := range []string{"pc", "iphone", "ipad"} {
		fmt.Printf("Cooking for %s...\n", target)
		if _, err := executeCmd("bin/kiln", withArgs("cook", "-config", "kiln.toml", "-target", target, "-name", "base_"+target, "-out", "build/"+target), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Runs vet and the test suite.
func Test() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
