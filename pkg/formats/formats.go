// Package formats provides parsers and serializers for MikuMikuDance file
// formats: PMX models, VMD motions and MMD scene captures (.mscap).
//
// Loaders take a complete in-memory buffer and either return a fully
// decoded document or an error; partial documents are never returned.
// Serializers never fail for documents built by a loader or in-process.
package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/headless-mmd/pkg/binio"
)

// Error categories. Every format-specific error wraps exactly one of them.
var (
	// ErrFormat covers bad magic, versions, enum tags, widths and counts.
	ErrFormat = errors.New("format error")
	// ErrTruncated means the buffer ended before the format did.
	ErrTruncated = errors.New("truncated data")
	// ErrSemantic covers well-formed fields with invalid values.
	ErrSemantic = errors.New("semantic error")
)

// checkpoint converts a failed reader into the format's truncation error.
func checkpoint(r *binio.Reader, truncated error) error {
	err := r.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, binio.ErrOverflow) {
		return fmt.Errorf("%w: %w", truncated, err)
	}
	return fmt.Errorf("%w: %w", ErrFormat, err)
}
