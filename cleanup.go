package attrindex

import (
	"errors"
	"os"
	"slices"
	"sync"
)

// leftovers tracks temporary files that could not be removed when their
// build finished.
var leftovers = struct {
	sync.Mutex
	names map[string]struct{}
}{names: make(map[string]struct{})}

// removeTemp removes a temporary file, registering it as a leftover if
// removal fails.
func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		leftovers.Lock()
		leftovers.names[name] = struct{}{}
		leftovers.Unlock()
	}
}

// Leftovers returns the temporary files that previous builds failed to
// remove.
func Leftovers() []string {
	leftovers.Lock()
	defer leftovers.Unlock()

	names := make([]string, 0, len(leftovers.names))
	for name := range leftovers.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RemoveLeftovers retries the removal of temporary files that previous
// builds failed to remove. Programs should call it before they exit.
func RemoveLeftovers() error {
	leftovers.Lock()
	defer leftovers.Unlock()

	var errs []error
	for name := range leftovers.names {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(leftovers.names, name)
	}
	return errors.Join(errs...)
}
