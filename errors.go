package spatialsim

// Format-string constants for configuration and input-data errors
// (spec.md §7 categories 1-2). Wrapped with github.com/pkg/errors at the
// call site to keep a trail back to the offending key or file.
const (
	IntKeyNotFoundError = "key %d not found"
	IntKeyExists        = "key %d already exists"

	InvalidFloatParameterError  = "invalid %s %f, %s"
	InvalidIntParameterError    = "invalid %s %d, %s"
	InvalidStringParameterError = "invalid %s %s, %s"

	MissingRequiredKeyError     = "missing required configuration key %q in section %q"
	UnrecognizedKeywordError    = "%q is not a recognised value for %q"
	MismatchedFileListError     = "%s and %s must list the same number of files, got %d and %d"
	FileParsingError            = "error parsing line %d: %s"
	RasterHeaderMismatchError   = "raster %s header does not match expected %s"
	CellHostCountMismatchError  = "cell at (%d,%d) has %d hosts across states, expected %d"
	UnknownRateChannelError     = "unknown rate channel %q"
	EmptySusceptiblePoolError   = "infection event drawn against cell %d with zero susceptible hosts"
	UnknownInterventionKindErr  = "unknown intervention kind %q"
	InterventionCallbackShapeErr = "intervention %q returned an invalid callback shape: %s"
)

// Format-string constants for test assertions, following the teacher's
// t.Errorf(TemplateConstant, want, got) convention.
const (
	UnequalFloatParameterError  = "expected %s %f, instead got %f"
	UnequalIntParameterError    = "expected %s %d, instead got %d"
	UnequalStringParameterError = "expected %s %s, instead got %s"
	UnexpectedErrorWhileError   = "encountered error while %s: %s"
	ExpectedErrorWhileError     = "expected an error while %s, instead got none"
)
