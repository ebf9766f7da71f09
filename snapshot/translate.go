package snapshot

// TypeTranslator maps item types into the wire's type space at emit time.
// Extended (UUID-declared) types and declaration items bypass it. A second
// wire variant adds a new implementation instead of a flag on the builder.
type TypeTranslator interface {
	// TranslateType returns the wire type for typ. A negative result means
	// "no equivalent"; the builder emits the item with that negative
	// sentinel type so readers can recognise and skip it, keeping the
	// storage slot so item indices line up.
	TranslateType(typ int32) int32
}

type identityTranslator struct{}

func (identityTranslator) TranslateType(typ int32) int32 { return typ }

// IdentityTranslator emits types unchanged. It is the default for builders
// constructed with a nil translator.
var IdentityTranslator TypeTranslator = identityTranslator{}

// TranslatorFunc adapts a plain mapping function, such as the environment's
// new-to-legacy bridge, to TypeTranslator.
type TranslatorFunc func(typ int32) int32

func (f TranslatorFunc) TranslateType(typ int32) int32 { return f(typ) }
