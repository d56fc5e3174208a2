package apischema

// Test-only exports for internal functions.
var (
	Normalize           = normalize
	PatternNames        = patternNames
	ToOpenAPIPath       = toOpenAPIPath
	GenerateOperationID = generateOperationID
	SplitDocstring      = splitDocstring
	ActionPattern       = actionPattern
	PrintQueries        = printQueries
	TokenizeSQL         = tokenizeSQL
)

// Negotiate returns the media type the default codecs answer accept with.
func Negotiate(accept string) (string, bool) {
	enc, ok := defaultCodecs.negotiate(accept)
	if !ok {
		return "", false
	}
	return enc.ContentType(), true
}

// DecoderFor returns the media type of the default decoder for contentType.
func DecoderFor(contentType string) (string, bool) {
	dec, ok := defaultCodecs.decoderFor(contentType)
	if !ok {
		return "", false
	}
	return dec.ContentType(), true
}
