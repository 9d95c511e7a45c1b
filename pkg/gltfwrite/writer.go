// Package gltfwrite serializes a scene.Document to glTF JSON in a single
// streaming pass.
//
// The Writer is a small structured builder: containers are opened and closed
// explicitly, nesting is tracked as a depth counter plus a fixed-size stack of
// container kinds, and separators are driven by a pending-comma flag. No
// document tree is built; every token is written as soon as it is known.
package gltfwrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dialect selects the textual flavour of the output.
type Dialect int

const (
	// DialectJSON produces valid JSON: double quotes, escaped strings and an
	// attributes object.
	DialectJSON Dialect = iota
	// DialectLegacy reproduces the byte stream of the legacy C emitter:
	// single quotes, raw strings and an attributes array of keyed entries.
	DialectLegacy
)

func (d Dialect) String() string {
	switch d {
	case DialectJSON:
		return "json"
	case DialectLegacy:
		return "legacy"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDialect converts a dialect name ("json" or "legacy") to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return DialectJSON, nil
	case "legacy":
		return DialectLegacy, nil
	default:
		return 0, fmt.Errorf("unknown dialect %q", s)
	}
}

// DefaultIndent is the indent unit repeated once per nesting level.
const DefaultIndent = "  "

// Options controls the output layout.
type Options struct {
	Indent  string
	Dialect Dialect
}

// DefaultOptions returns valid-JSON output with two-space indentation.
func DefaultOptions() Options {
	return Options{Indent: DefaultIndent, Dialect: DialectJSON}
}

var (
	// ErrUnbalanced is reported when containers are closed out of order, the
	// document is ended with containers still open, or a token is written
	// outside the document.
	ErrUnbalanced = errors.New("unbalanced container")

	// ErrTooDeep is reported when nesting exceeds MaxDepth.
	ErrTooDeep = errors.New("nesting too deep")

	// ErrKeyedArrayEntry is reported when a keyed property is written
	// directly inside an array in a dialect that does not allow it.
	ErrKeyedArrayEntry = errors.New("keyed entry inside array")
)

// MaxDepth bounds the container stack, including the implicit top-level object.
const MaxDepth = 16

type kind uint8

const (
	objectKind kind = iota
	arrayKind
)

// Writer emits glTF JSON tokens to an io.Writer.
//
// The first error (either a write failure or misuse) is sticky: subsequent
// calls are no-ops and Err reports it.
type Writer struct {
	w       io.Writer
	indent  string
	dialect Dialect

	depth   int
	pending bool
	stack   [MaxDepth]kind
	ended   bool

	err error
}

// NewWriter creates a Writer. An empty indent falls back to DefaultIndent.
func NewWriter(w io.Writer, opts Options) *Writer {
	indent := opts.Indent
	if indent == "" {
		indent = DefaultIndent
	}
	return &Writer{w: w, indent: indent, dialect: opts.Dialect}
}

// Depth returns the number of containers currently open, counting the
// top-level object.
func (e *Writer) Depth() int {
	return e.depth
}

// Err returns the first error encountered.
func (e *Writer) Err() error {
	return e.err
}

// Begin opens the top-level object.
func (e *Writer) Begin() {
	if e.err != nil {
		return
	}
	if e.depth != 0 || e.ended {
		e.fail(fmt.Errorf("%w: document already started", ErrUnbalanced))
		return
	}
	e.write("{")
	e.stack[0] = objectKind
	e.depth = 1
	e.pending = false
}

// End closes the top-level object and terminates the output with a newline.
func (e *Writer) End() error {
	if e.err != nil {
		return e.err
	}
	if e.depth != 1 {
		e.fail(fmt.Errorf("%w: %d containers still open", ErrUnbalanced, e.depth-1))
		return e.err
	}
	e.write("\n}\n")
	e.depth = 0
	e.ended = true
	return e.err
}

// BeginObject opens an object. key must be set inside objects and empty
// inside arrays.
func (e *Writer) BeginObject(key string) {
	e.open(key, "{", objectKind)
}

// EndObject closes the innermost container, which must be an object.
func (e *Writer) EndObject() {
	e.close("}", objectKind)
}

// BeginArray opens an array. key follows the BeginObject rules.
func (e *Writer) BeginArray(key string) {
	e.open(key, "[", arrayKind)
}

// EndArray closes the innermost container, which must be an array.
func (e *Writer) EndArray() {
	e.close("]", arrayKind)
}

// String writes a string property. Empty values are omitted.
func (e *Writer) String(key, value string) {
	if value == "" || !e.property(key) {
		return
	}
	e.separator()
	e.key(key)
	e.write(e.quote(value))
	e.pending = true
}

// Int writes an integer property unless it equals def.
func (e *Writer) Int(key string, value, def int) {
	if value == def || !e.property(key) {
		return
	}
	e.number(key, value)
}

// Index writes a reference property. A nil reference is omitted.
func (e *Writer) Index(key string, ref *int) {
	if ref == nil || !e.property(key) {
		return
	}
	e.number(key, *ref)
}

func (e *Writer) number(key string, value int) {
	e.separator()
	e.key(key)
	e.write(strconv.Itoa(value))
	e.pending = true
}

func (e *Writer) open(key, token string, k kind) {
	if e.err != nil {
		return
	}
	if e.depth == 0 {
		e.fail(fmt.Errorf("%w: %s outside document", ErrUnbalanced, token))
		return
	}
	if e.depth == MaxDepth {
		e.fail(ErrTooDeep)
		return
	}
	inArray := e.stack[e.depth-1] == arrayKind
	if inArray && key != "" && e.dialect != DialectLegacy {
		e.fail(fmt.Errorf("%w: %q", ErrKeyedArrayEntry, key))
		return
	}
	if !inArray && key == "" {
		e.fail(fmt.Errorf("%w: unkeyed %s inside object", ErrUnbalanced, token))
		return
	}

	e.separator()
	e.key(key)
	e.write(token)
	e.stack[e.depth] = k
	e.depth++
	e.pending = false
}

// close decrements depth before indenting so the closing token lines up with
// the line that opened it.
func (e *Writer) close(token string, k kind) {
	if e.err != nil {
		return
	}
	if e.depth <= 1 || e.stack[e.depth-1] != k {
		e.fail(fmt.Errorf("%w: unexpected %s at depth %d", ErrUnbalanced, token, e.depth))
		return
	}
	e.depth--
	e.write("\n")
	e.writeIndent()
	e.write(token)
	e.pending = true
}

// property validates the placement of a keyed scalar.
func (e *Writer) property(key string) bool {
	if e.err != nil {
		return false
	}
	if e.depth == 0 {
		e.fail(fmt.Errorf("%w: property %q outside document", ErrUnbalanced, key))
		return false
	}
	if e.stack[e.depth-1] == arrayKind && e.dialect != DialectLegacy {
		e.fail(fmt.Errorf("%w: %q", ErrKeyedArrayEntry, key))
		return false
	}
	return true
}

func (e *Writer) separator() {
	if e.pending {
		e.write(",\n")
		e.pending = false
	} else {
		e.write("\n")
	}
	e.writeIndent()
}

func (e *Writer) writeIndent() {
	for range e.depth {
		e.write(e.indent)
	}
}

func (e *Writer) key(key string) {
	if key == "" {
		return
	}
	e.write(e.quote(key))
	e.write(": ")
}

func (e *Writer) quote(s string) string {
	if e.dialect == DialectLegacy {
		return "'" + s + "'"
	}
	b, err := json.Marshal(s)
	if err != nil {
		// Strings always marshal; invalid UTF-8 is coerced.
		return strconv.Quote(s)
	}
	return string(b)
}

func (e *Writer) write(s string) {
	if e.err != nil {
		return
	}
	if _, err := io.WriteString(e.w, s); err != nil {
		e.fail(fmt.Errorf("write output: %w", err))
	}
}

func (e *Writer) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
