package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the literal shapes that appear in test cases: numbers, strings,
// booleans, None, lists and tuples.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindNone
	KindList
	KindTuple
)

// Value is a parsed test-case literal. Integers keep their digits so that
// values outside int64 survive a round trip.
type Value struct {
	Kind  Kind
	Int   string
	Float float64
	Str   string
	Bool  bool
	Items []Value
}

var errSyntax = errors.New("invalid literal")

// ParseLiteral parses one literal in the small Python-like grammar used by the
// problem catalogue. Trailing input is an error.
func ParseLiteral(s string) (Value, error) {
	p := &literalParser{src: s}
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Value{}, fmt.Errorf("%w: trailing input at %d", errSyntax, p.pos)
	}
	return v, nil
}

func (v Value) IsSequence() bool {
	return v.Kind == KindList || v.Kind == KindTuple
}

// String renders the value the way Python's print() would.
func (v Value) String() string {
	if v.Kind == KindString {
		return v.Str
	}
	return v.repr()
}

func (v Value) repr() string {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return formatFloat(v.Float)
	case KindString:
		return quote(v.Str)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNone:
		return "None"
	case KindList, KindTuple:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.repr()
		}
		if v.Kind == KindList {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return ""
}

// JSON encodes the value for the harness stdin. Tuples become arrays.
func (v Value) JSON() string {
	var sb strings.Builder
	v.writeJSON(&sb)
	return sb.String()
}

func (v Value) writeJSON(sb *strings.Builder) {
	switch v.Kind {
	case KindInt:
		sb.WriteString(v.Int)
	case KindFloat:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			sb.WriteString("null")
			return
		}
		sb.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindString:
		b, _ := json.Marshal(v.Str)
		sb.Write(b)
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.Bool))
	case KindNone:
		sb.WriteString("null")
	case KindList, KindTuple:
		sb.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				sb.WriteByte(',')
			}
			it.writeJSON(sb)
		}
		sb.WriteByte(']')
	}
}

// sortedItems returns the sequence elements ordered by their rendering.
func (v Value) sortedItems() []string {
	keys := make([]string, len(v.Items))
	for i, it := range v.Items {
		keys[i] = it.repr()
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	q := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == rune(q):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) value() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return Value{}, fmt.Errorf("%w: unexpected end", errSyntax)
	}
	c := p.src[p.pos]
	switch {
	case c == '[':
		p.pos++
		items, err := p.items(']')
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, Items: items}, nil
	case c == '(':
		return p.tuple()
	case c == '\'' || c == '"':
		s, err := p.str(c)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: s}, nil
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}
	for _, kw := range []struct {
		word string
		val  Value
	}{
		{"True", Value{Kind: KindBool, Bool: true}},
		{"False", Value{Kind: KindBool}},
		{"None", Value{Kind: KindNone}},
		{"null", Value{Kind: KindNone}},
		{"true", Value{Kind: KindBool, Bool: true}},
		{"false", Value{Kind: KindBool}},
	} {
		if strings.HasPrefix(p.src[p.pos:], kw.word) && !p.identAt(p.pos+len(kw.word)) {
			p.pos += len(kw.word)
			return kw.val, nil
		}
	}
	return Value{}, fmt.Errorf("%w: unexpected %q at %d", errSyntax, c, p.pos)
}

func (p *literalParser) identAt(i int) bool {
	if i >= len(p.src) {
		return false
	}
	c := p.src[i]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *literalParser) items(closer byte) ([]Value, error) {
	items := []Value{}
	for {
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == closer {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("%w: unterminated sequence", errSyntax)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return items, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' at %d", errSyntax, p.pos)
		}
	}
}

// tuple handles "()", "(x,)", "(x, y)" and plain parenthesised "(x)".
func (p *literalParser) tuple() (Value, error) {
	p.pos++
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return Value{Kind: KindTuple, Items: []Value{}}, nil
	}
	first, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return first, nil
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ',' {
		return Value{}, fmt.Errorf("%w: expected ',' at %d", errSyntax, p.pos)
	}
	p.pos++
	rest, err := p.items(')')
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindTuple, Items: append([]Value{first}, rest...)}, nil
}

func (p *literalParser) str(q byte) (string, error) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case q:
			p.pos++
			return sb.String(), nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", fmt.Errorf("%w: dangling escape", errSyntax)
			}
			p.pos++
			switch e := p.src[p.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(e)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
			p.pos++
		case '\n':
			return "", fmt.Errorf("%w: newline in string", errSyntax)
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("%w: unterminated string", errSyntax)
}

func (p *literalParser) number() (Value, error) {
	start := p.pos
	if c := p.src[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	if strings.HasPrefix(p.src[p.pos:], "inf") {
		p.pos += 3
		f := math.Inf(1)
		if p.src[start] == '-' {
			f = math.Inf(-1)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	}
	isFloat := false
	digits := 0
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '-' || p.src[p.pos+1] == '+') {
				p.pos++
			}
		case c == '_':
		default:
			break scan
		}
		p.pos++
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if digits == 0 {
		return Value{}, fmt.Errorf("%w: bad number %q", errSyntax, text)
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad number %q", errSyntax, text)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	}
	text = strings.TrimPrefix(text, "+")
	neg := strings.HasPrefix(text, "-")
	body := strings.TrimLeft(strings.TrimPrefix(text, "-"), "0")
	if body == "" {
		return Value{Kind: KindInt, Int: "0"}, nil
	}
	if neg {
		body = "-" + body
	}
	return Value{Kind: KindInt, Int: body}, nil
}
