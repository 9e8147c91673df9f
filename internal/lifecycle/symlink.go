package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evsieve/evsieve/internal/errs"
)

// CreateLink atomically points linkPath at target (spec.md §9: "an
// existing symlink at that path is replaced atomically", "create-link
// must never leave a stale or half-written symlink"). It symlinks into a
// temp file beside linkPath, then renames over the destination — rename()
// within the same directory is atomic on Linux, so a concurrent reader
// never observes a missing or partial link.
func CreateLink(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	tmp, err := os.CreateTemp(dir, ".evsieve-link-*")
	if err != nil {
		return errs.New(errs.Resource, fmt.Errorf("create-link temp file: %w", err))
	}
	tmpPath := tmp.Name()
	tmp.Close()
	if err := os.Remove(tmpPath); err != nil {
		return errs.New(errs.Resource, fmt.Errorf("create-link temp file: %w", err))
	}

	if err := os.Symlink(target, tmpPath); err != nil {
		return errs.New(errs.Resource, fmt.Errorf("create-link symlink: %w", err))
	}
	if err := os.Rename(tmpPath, linkPath); err != nil {
		os.Remove(tmpPath)
		return errs.New(errs.Resource, fmt.Errorf("create-link rename: %w", err))
	}
	return nil
}

// RemoveLink removes linkPath if it still points at target, leaving it
// alone otherwise (a later evsieve instance, or the user, may have
// already repointed it — spec.md §9: never remove a link evsieve doesn't
// own).
func RemoveLink(linkPath, target string) error {
	current, err := os.Readlink(linkPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if current != target {
		return nil
	}
	err = os.Remove(linkPath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
