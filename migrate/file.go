package migrate

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/reoring/vds/schema"
)

// HandleMigration upgrades the datasheet file at path in place. It reports
// whether the file was rewritten; current files are not touched.
func HandleMigration(path string, b *schema.Binding) (bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return false, fmt.Errorf("migrate: reading %s: %w", path, err)
	}
	changed, err := Migrate(doc, b)
	if err != nil || !changed {
		return false, err
	}
	doc.WriteSettings.CanonicalAttrVal = true
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return false, fmt.Errorf("migrate: writing %s: %w", path, err)
	}
	return true, nil
}
