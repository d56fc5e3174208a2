package apischema

import (
	"cmp"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"mime"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Encoder writes response bodies in one media type.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, v any) error
}

// Decoder reads request bodies of one media type.
type Decoder interface {
	ContentType() string
	Decode(r io.Reader, v any) error
}

// codec is a built-in Encoder and Decoder. An empty body decodes to nothing.
type codec struct {
	mediaType string
	aliases   []string
	encode    func(w io.Writer, v any) error
	decode    func(r io.Reader, v any) error
}

func (c codec) ContentType() string { return c.mediaType }

func (c codec) Encode(w io.Writer, v any) error { return c.encode(w, v) }

func (c codec) Decode(r io.Reader, v any) error {
	if err := c.decode(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// builtinCodecs are registered on every router, JSON first.
var builtinCodecs = []codec{
	{
		mediaType: "application/json",
		encode:    func(w io.Writer, v any) error { return json.NewEncoder(w).Encode(v) },
		decode:    func(r io.Reader, v any) error { return json.NewDecoder(r).Decode(v) },
	},
	{
		mediaType: "application/xml",
		aliases:   []string{"text/xml"},
		encode: func(w io.Writer, v any) error {
			if _, err := io.WriteString(w, xml.Header); err != nil {
				return err
			}
			return xml.NewEncoder(w).Encode(v)
		},
		decode: func(r io.Reader, v any) error { return xml.NewDecoder(r).Decode(v) },
	},
	{
		mediaType: "application/yaml",
		aliases:   []string{"application/x-yaml", "text/yaml"},
		encode: func(w io.Writer, v any) error {
			enc := yaml.NewEncoder(w)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
		decode: func(r io.Reader, v any) error { return yaml.NewDecoder(r).Decode(v) },
	},
}

// codecRegistry resolves encoders from Accept and decoders from
// Content-Type. encoders[0] is the default.
type codecRegistry struct {
	encoders []Encoder
	byType   map[string]Encoder
	decoders map[string]Decoder
}

var defaultCodecs = newCodecRegistry(nil, nil)

// newCodecRegistry registers the built-in codecs, then the user's. A user
// codec for a built-in media type replaces it.
func newCodecRegistry(encoders []Encoder, decoders []Decoder) *codecRegistry {
	cr := &codecRegistry{
		byType:   make(map[string]Encoder),
		decoders: make(map[string]Decoder),
	}
	for _, c := range builtinCodecs {
		cr.addEncoder(c, c.aliases...)
		cr.addDecoder(c, c.aliases...)
	}
	for _, enc := range encoders {
		cr.addEncoder(enc)
	}
	for _, dec := range decoders {
		cr.addDecoder(dec)
	}
	return cr
}

func (cr *codecRegistry) addEncoder(enc Encoder, aliases ...string) {
	mt := enc.ContentType()
	if i := slices.IndexFunc(cr.encoders, func(e Encoder) bool { return e.ContentType() == mt }); i >= 0 {
		cr.encoders[i] = enc
	} else {
		cr.encoders = append(cr.encoders, enc)
	}
	for _, name := range append([]string{mt}, aliases...) {
		cr.byType[name] = enc
	}
}

func (cr *codecRegistry) addDecoder(dec Decoder, aliases ...string) {
	for _, name := range append([]string{dec.ContentType()}, aliases...) {
		cr.decoders[name] = dec
	}
}

func (cr *codecRegistry) defaultEncoder() Encoder { return cr.encoders[0] }

// negotiate picks the encoder for an Accept header. An empty header gets the
// default; false means nothing acceptable is registered.
func (cr *codecRegistry) negotiate(accept string) (Encoder, bool) {
	if strings.TrimSpace(accept) == "" {
		return cr.defaultEncoder(), true
	}

	for _, rng := range parseAccept(accept) {
		if rng.q <= 0 {
			break
		}
		if rng.mediaType == "*/*" {
			return cr.defaultEncoder(), true
		}
		if prefix, ok := strings.CutSuffix(rng.mediaType, "*"); ok {
			for _, enc := range cr.encoders {
				if strings.HasPrefix(enc.ContentType(), prefix) {
					return enc, true
				}
			}
			continue
		}
		if enc, ok := cr.byType[rng.mediaType]; ok {
			return enc, true
		}
	}
	return nil, false
}

type acceptRange struct {
	mediaType string
	q         float64
}

// parseAccept returns the media ranges of an Accept header by descending
// quality. Equal qualities keep header order.
func parseAccept(accept string) []acceptRange {
	var ranges []acceptRange
	for part := range strings.SplitSeq(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if s, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				q = v
			}
		}
		ranges = append(ranges, acceptRange{mediaType: mt, q: q})
	}
	slices.SortStableFunc(ranges, func(a, b acceptRange) int { return cmp.Compare(b.q, a.q) })
	return ranges
}

// decoderFor returns the decoder of a Content-Type. An empty type and any
// "+json" structured syntax decode as JSON.
func (cr *codecRegistry) decoderFor(contentType string) (Decoder, bool) {
	if contentType == "" {
		return cr.decoders["application/json"], true
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	if dec, ok := cr.decoders[mt]; ok {
		return dec, true
	}
	if strings.HasSuffix(mt, "+json") {
		return cr.decoders["application/json"], true
	}
	return nil, false
}

// contentTypes lists the encoder media types for documentation.
func (cr *codecRegistry) contentTypes() []string {
	out := make([]string, len(cr.encoders))
	for i, enc := range cr.encoders {
		out[i] = enc.ContentType()
	}
	return out
}
