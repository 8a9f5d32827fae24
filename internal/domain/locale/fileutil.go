package locale

import (
	"os"
)

// readFileIfExists returns (nil, nil) for a missing file instead of an
// error — every store in this package treats "file absent" as "empty",
// not a failure, so the first monitor tick on a bare data directory
// classifies every discovered locale as added.
func readFileIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
