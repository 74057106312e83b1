package snapshot

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// CountLegacy counts the entity files of a legacy layout under root. Each
// legacy entity is one .json file, so only *.json files below a notes/,
// clients/ or projects/ folder are counted; other files in those folders
// (images, markdown exports) are not entities. The counts are for reporting
// only; legacy imports never touch the store. Attachments and activity logs
// have no legacy folder and count zero.
func CountLegacy(root string) (db.Counts, error) {
	fsys := os.DirFS(root)
	count := func(folder string) (int, error) {
		matches, err := doublestar.Glob(fsys, "**/"+folder+"/**/*.json", doublestar.WithFilesOnly())
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", folder, err)
		}
		return len(matches), nil
	}

	var c db.Counts
	var err error
	if c.Notes, err = count("notes"); err != nil {
		return db.Counts{}, err
	}
	if c.Clients, err = count("clients"); err != nil {
		return db.Counts{}, err
	}
	if c.Projects, err = count("projects"); err != nil {
		return db.Counts{}, err
	}
	return c, nil
}
