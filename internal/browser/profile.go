package browser

import (
	"fmt"
	"os"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// PrepareProfile creates dir if needed and checks that Chrome will be able
// to write its profile there.
func PrepareProfile(dir string) error {
	if dir == "" {
		return &schemas.SetupError{Stage: "profile", Err: fmt.Errorf("profile directory is not set")}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &schemas.SetupError{Stage: "profile", Err: fmt.Errorf("failed to create %s: %w", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return &schemas.SetupError{Stage: "profile", Err: fmt.Errorf("profile directory %s is not writable: %w", dir, err)}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
