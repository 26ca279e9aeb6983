package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// envelopeSchema is the only shape accepted after normalization.
const envelopeSchema = `{
  "type": "object",
  "required": ["field_validations"],
  "properties": {
    "field_validations": {"type": "array"}
  }
}`

var compiledEnvelope = jsonschema.MustCompileString("envelope.json", envelopeSchema)

var (
	reFenceOpen     = regexp.MustCompile("(?i)```json[ \t]*")
	reBlankRuns     = regexp.MustCompile(`\n(?:[ \t]*\r?\n)+`)
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)

	// Tokens models emit when they elide content.
	elisionTokens = []string{"…", "...", "[TRUNCATED]"}
)

// Payload is a normalized model response.
type Payload struct {
	FieldValidations []json.RawMessage
	// Candidate is the cleaned text that was parsed.
	Candidate string
	// Salvaged is the number of entries rebuilt from a response that did not parse as a whole.
	Salvaged int
}

type Option func(*Recoverer)

// WithSalvage rebuilds the envelope from every complete entry when the response cannot be parsed
// as a whole.
func WithSalvage(on bool) Option {
	return func(r *Recoverer) { r.salvage = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recoverer) {
		if l != nil {
			r.log = l
		}
	}
}

// Recoverer extracts a JSON payload from raw model output. It is stateless and safe for
// concurrent use.
type Recoverer struct {
	salvage bool
	log     *slog.Logger
}

func New(opts ...Option) *Recoverer {
	r := &Recoverer{log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Locate returns the JSON candidate in text: the first ```json fence if there is one,
// otherwise the brace-balanced block starting at the first line that begins with '{'.
func Locate(text string) (string, bool) {
	if loc := reFenceOpen.FindStringIndex(text); loc != nil {
		body := text[loc[1]:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body), true
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		out := []string{trimmed}
		depth := 0
		if balanced(trimmed, &depth) {
			return strings.TrimSpace(trimmed), true
		}
		for _, next := range lines[i+1:] {
			out = append(out, next)
			if balanced(next, &depth) {
				break
			}
		}
		return strings.TrimSpace(strings.Join(out, "\n")), true
	}
	return "", false
}

// balanced counts braces without regard to strings and reports whether depth
// came back to zero anywhere on the line.
func balanced(line string, depth *int) bool {
	closed := false
	for _, c := range line {
		switch c {
		case '{':
			*depth++
		case '}':
			*depth--
			if *depth == 0 {
				closed = true
			}
		}
	}
	return closed
}

// Clean collapses blank-line runs, drops trailing commas and strips elision tokens until
// the text stops changing. Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = reBlankRuns.ReplaceAllString(s, "\n")
	s = reTrailingComma.ReplaceAllString(s, "$1")
	for _, tok := range elisionTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}

// Parse locates, cleans and decodes the JSON in text. It returns the decoded value
// (numbers as json.Number) and the cleaned candidate it came from.
func (r *Recoverer) Parse(text string) (any, string, error) {
	candidate, ok := Locate(text)
	if !ok {
		r.log.Warn("recovery.no_json", "text_len", len(text))
		return nil, "", common.NewExtractionError(common.KindNoJSONFound, "no json object or fenced block in response", nil)
	}

	cleaned := Clean(candidate)
	v, err := decode(cleaned)
	if err == nil {
		return v, cleaned, nil
	}

	if i := strings.LastIndex(cleaned, "}"); i >= 0 {
		truncated := Clean(cleaned[:i+1])
		if tv, terr := decode(truncated); terr == nil {
			r.log.Info("recovery.fallback.truncate", "dropped_bytes", len(cleaned)-len(truncated))
			return tv, truncated, nil
		}
	}

	xe := common.NewExtractionError(common.KindMalformedJSON, "response is not valid json after cleanup", err)
	xe.Candidate = cleaned
	return nil, cleaned, xe
}

// Recover parses text and normalizes it to a field_validations envelope. A bare top-level
// array is wrapped.
func (r *Recoverer) Recover(text string) (*Payload, error) {
	v, cleaned, err := r.Parse(text)
	if err != nil {
		if r.salvage && errors.Is(err, common.ErrMalformedJSON) {
			if entries := salvageEntries(cleaned); len(entries) > 0 {
				r.log.Warn("recovery.salvage", "entries", len(entries))
				return &Payload{FieldValidations: entries, Candidate: cleaned, Salvaged: len(entries)}, nil
			}
		}
		return nil, err
	}

	if arr, ok := v.([]any); ok {
		v = map[string]any{"field_validations": arr}
	}
	if err := compiledEnvelope.Validate(v); err != nil {
		xe := common.NewExtractionError(common.KindInvalidSchema, "response does not match the field_validations envelope", err)
		xe.Candidate = cleaned
		return nil, xe
	}

	items := v.(map[string]any)["field_validations"].([]any)
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, common.NewExtractionError(common.KindMalformedJSON, "re-encode entry", err)
		}
		out = append(out, b)
	}
	return &Payload{FieldValidations: out, Candidate: cleaned}, nil
}

// decode parses exactly one JSON value, rejecting trailing data.
func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after json value")
	}
	return v, nil
}

// salvageEntries returns every complete, individually valid object inside the
// field_validations array (or the first array when the key is missing).
func salvageEntries(s string) []json.RawMessage {
	start := 0
	if i := strings.Index(s, `"field_validations"`); i >= 0 {
		start = i
	}
	open := strings.IndexByte(s[start:], '[')
	if open < 0 {
		return nil
	}

	var (
		out      []json.RawMessage
		depth    int
		objStart = -1
		inStr    bool
		esc      bool
	)
	for i := start + open + 1; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth < 0 {
				return out
			}
			if depth == 0 && objStart >= 0 {
				frag := []byte(s[objStart : i+1])
				if json.Valid(frag) {
					var buf bytes.Buffer
					if err := json.Compact(&buf, frag); err == nil {
						out = append(out, buf.Bytes())
					}
				}
				objStart = -1
			}
		case ']':
			if depth == 0 {
				return out
			}
		}
	}
	return out
}
