package quota

import "context"

// Store persists the quota document.
type Store interface {
	// Load returns the current document. A document that does not exist yet
	// is returned empty with a nil error.
	Load(ctx context.Context) (Document, error)
	// Save overwrites the stored document with doc.
	Save(ctx context.Context, doc Document) error
}
