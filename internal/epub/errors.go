package epub

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrMalformedContainer   = errors.New("malformed container")
	ErrMalformedPackage     = errors.New("malformed package document")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrNotFound             = errors.New("not found")
	ErrMalformedDocument    = errors.New("malformed content document")
	ErrNavigationTooDeep    = errors.New("navigation nesting too deep")
)

// Refinements of the error kinds above.
var (
	ErrDuplicatePath     = fmt.Errorf("%w: duplicate resource path", ErrReferentialIntegrity)
	ErrDuplicateID       = fmt.Errorf("%w: duplicate manifest id", ErrReferentialIntegrity)
	ErrUnknownIDRef      = fmt.Errorf("%w: unknown manifest id", ErrReferentialIntegrity)
	ErrDuplicateIDRef    = fmt.Errorf("%w: manifest id already in spine", ErrReferentialIntegrity)
	ErrDuplicateRole     = fmt.Errorf("%w: duplicate collection role", ErrReferentialIntegrity)
	ErrMissingMimetype   = fmt.Errorf("%w: mimetype file not found", ErrMalformedContainer)
	ErrInvalidMimetype   = fmt.Errorf("%w: mimetype must be '%s'", ErrMalformedContainer, MimeType)
	ErrContainerNotFound = fmt.Errorf("%w: %s not found", ErrMalformedContainer, ContainerPath)
	ErrRootfileNotFound  = fmt.Errorf("%w: no package rootfile in %s", ErrMalformedContainer, ContainerPath)
	ErrMissingMetadata   = fmt.Errorf("%w: required metadata missing", ErrMalformedPackage)
)
