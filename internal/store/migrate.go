package store

import "github.com/dshills/projdex/pkg/types"

// CurrentVersion is the catalog document schema version.
const CurrentVersion = 2

// migration is one forward normalization step. Steps must be idempotent:
// applying one to an already-normalized document changes nothing.
type migration struct {
	version int
	apply   func(*Document)
}

var migrations = []migration{
	{version: 1, apply: migrateV1},
	{version: 2, apply: migrateV2},
}

// Migrate brings a document forward to CurrentVersion. Documents at or past
// the current version pass through untouched except for meta recomputation;
// there is no downgrade path.
func Migrate(doc Document) Document {
	if doc.Projects == nil {
		doc.Projects = []types.Project{}
	}

	for _, m := range migrations {
		if doc.Meta.Version >= m.version {
			continue
		}
		m.apply(&doc)
		doc.Meta.Version = m.version
	}

	doc.Meta.ProjectCount = len(doc.Projects)
	return doc
}

// migrateV1 backfills user-editable defaults on records written before
// tags and importance existed.
func migrateV1(doc *Document) {
	for i := range doc.Projects {
		p := &doc.Projects[i]
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if p.Importance == 0 {
			p.Importance = types.DefaultImportance
		}
	}
}

// migrateV2 backfills scan bookkeeping fields.
func migrateV2(doc *Document) {
	for i := range doc.Projects {
		p := &doc.Projects[i]
		if p.ScanStatus == "" {
			p.ScanStatus = types.ScanStatusComplete
		}
		if p.Type == "" {
			p.Type = types.ProjectTypeLocal
		}
	}
}
