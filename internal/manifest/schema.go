package manifest

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/hyena-release/internal/failure"
)

//go:embed schema.cue
var schemaCUE string

// Validate checks raw manifest JSON against the #Manifest definition.
// Unknown fields are rejected because CUE definitions are closed.
func Validate(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile manifest schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	doc := ctx.CompileBytes(data, cue.Filename(File))
	if err := doc.Err(); err != nil {
		return invalid(err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	return &failure.Error{
		Kind:    failure.KindPrecondition,
		Code:    failure.CodeManifestInvalid,
		Message: cueerrors.Details(err, nil),
		Err:     err,
	}
}
