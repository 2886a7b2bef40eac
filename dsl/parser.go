package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#[0-9A-Za-z]+`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:px|pt)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[:;]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
		participle.UseLookahead(2),
	)
)

// Document is the root AST node of a caption style file.
type Document struct {
	Pos     lexer.Position `parser:"" json:"-"`
	Name    string         `parser:"Newline* 'caption' @Ident?"`
	Entries []*Entry       `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}' Newline*"`
}

// Entry is either a multi-line text block or a key: value assignment.
type Entry struct {
	Text       *TextBlock  `parser:"  @@"`
	Assignment *Assignment `parser:"| @@"`
}

// TextBlock holds caption lines, one string literal per line.
type TextBlock struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Lines []*TextLiteral `parser:"'text' '{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// TextLiteral encapsulates one raw string statement.
type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':'"`
	Value *Value         `parser:"@@"`
}

// Value represents a property value.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
}

// Raw returns the value as written (strings are already unquoted).
func (v *Value) Raw() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	default:
		return ""
	}
}

// Kind returns the human-readable value type.
func (v *Value) Kind() string {
	switch {
	case v == nil:
		return "unknown"
	case v.String != nil:
		return "string"
	case v.Number != nil:
		return "number"
	case v.Color != nil:
		return "color"
	case v.Ident != nil:
		return "ident"
	default:
		return "unknown"
	}
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Assignments returns all key: value entries in file order.
func (d *Document) Assignments() []*Assignment {
	var out []*Assignment
	for _, e := range d.Entries {
		if e.Assignment != nil {
			out = append(out, e.Assignment)
		}
	}
	return out
}

// TextLines returns the lines of the last text block; ok is false when the
// document has no text block.
func (d *Document) TextLines() (lines []string, ok bool) {
	for _, e := range d.Entries {
		if e.Text == nil {
			continue
		}
		ok = true
		lines = lines[:0]
		for _, l := range e.Text.Lines {
			lines = append(lines, string(l.Value))
		}
	}
	return lines, ok
}

// Parse parses a caption style file from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	return documentParser.Parse("", r)
}

// ParseString parses caption style content from a string.
func ParseString(input string) (*Document, error) {
	return documentParser.ParseString("", input)
}
