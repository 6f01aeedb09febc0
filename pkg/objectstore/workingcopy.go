package objectstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inkwell-cms/inkwell/pkg/types"
)

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

// DeleteWorkingCopy removes a materialized working directory. The working
// copy is a disposable cache: historical commits stay in the store and the
// directory can be regenerated from any commit hash. Refuses to operate on
// a root or empty path.
func DeleteWorkingCopy(dir string) error {
	cleaned := filepath.Clean(dir)
	if cleaned == "" || cleaned == "/" || cleaned == "." {
		return fmt.Errorf("refusing to delete working copy at %q", dir)
	}
	if err := os.RemoveAll(cleaned); err != nil {
		return fmt.Errorf("delete working copy %s: %v: %w", cleaned, err, types.ErrStorage)
	}
	return nil
}
