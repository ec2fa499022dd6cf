package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/dotcommander/deepresearch/internal/agent"
)

// ErrNoJSON is returned when a reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in reply")

// Generator runs one model completion.
type Generator interface {
	Generate(ctx context.Context, c agent.Completion) (agent.Result, error)
}

// SchemaFor returns the JSON schema of T, inlined without references.
func SchemaFor[T any]() string {
	r := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var v T
	bts, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		// schemas are derived from static types
		panic(err)
	}
	return string(bts)
}

func structuredSystem[T any](instructions string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(instructions))
	sb.WriteString("\n\nReply with a single JSON object that validates against this JSON schema. ")
	sb.WriteString("Do not add commentary before or after it.\n\n")
	sb.WriteString(SchemaFor[T]())
	return sb.String()
}

// ExtractJSON returns the first balanced JSON object in text. Code fences
// and surrounding prose are ignored.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated object", ErrNoJSON)
}

// Decode parses a model reply into T.
func Decode[T any](text string) (T, error) {
	var v T
	raw, err := ExtractJSON(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("decode reply: %w", err)
	}
	return v, nil
}

// generateJSON asks for a T, with one repair round when the first reply
// does not parse.
func generateJSON[T any](ctx context.Context, gen Generator, c agent.Completion, instructions string) (T, error) {
	var zero T
	c.System = structuredSystem[T](instructions)

	res, err := gen.Generate(ctx, c)
	if err != nil {
		return zero, err
	}
	v, perr := Decode[T](res.Text)
	if perr == nil {
		return v, nil
	}

	c.Prompt = fmt.Sprintf(
		"%s\n\nYour previous reply could not be parsed (%v):\n\n%s\n\nReply again with only the corrected JSON object.",
		c.Prompt, perr, res.Text,
	)
	res, err = gen.Generate(ctx, c)
	if err != nil {
		return zero, err
	}
	v, perr = Decode[T](res.Text)
	if perr != nil {
		return zero, fmt.Errorf("invalid structured reply after retry: %w", perr)
	}
	return v, nil
}
