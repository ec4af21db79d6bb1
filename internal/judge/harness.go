package judge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

var ErrBadSignature = errors.New("cannot resolve entry function from signature")

type Param struct {
	Name       string
	Annotation string
}

// Signature is the parsed form of a problem's function signature, for example
// "def twoSum(nums: List[int], target: int) -> List[int]:".
type Signature struct {
	Name   string
	Params []Param
	// Method is set when the first parameter is self and the entry point lives on Solution.
	Method bool
}

func ParseSignature(sig string) (Signature, error) {
	s := strings.TrimSpace(sig)
	if i := strings.Index(s, "def "); i >= 0 {
		s = s[i+len("def "):]
	}
	s = strings.TrimLeft(s, " \t")
	open := strings.IndexByte(s, '(')
	if open <= 0 {
		return Signature{}, ErrBadSignature
	}
	name := strings.TrimSpace(s[:open])
	if !isIdent(name) {
		return Signature{}, fmt.Errorf("%w: %q", ErrBadSignature, name)
	}
	end := matchingParen(s, open)
	if end < 0 {
		return Signature{}, fmt.Errorf("%w: unbalanced parentheses", ErrBadSignature)
	}
	out := Signature{Name: name}
	for _, raw := range splitTopLevel(s[open+1 : end]) {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "/" || raw == "*" {
			continue
		}
		p := Param{Name: raw}
		if i := strings.IndexByte(raw, ':'); i >= 0 {
			p.Name = strings.TrimSpace(raw[:i])
			p.Annotation = strings.TrimSpace(raw[i+1:])
		}
		if i := strings.IndexByte(p.Annotation, '='); i >= 0 {
			p.Annotation = strings.TrimSpace(p.Annotation[:i])
		}
		if len(out.Params) == 0 && p.Name == "self" && !out.Method {
			out.Method = true
			continue
		}
		out.Params = append(out.Params, p)
	}
	return out, nil
}

// linkedParams returns the indexes of parameters that take a linked list.
func (s Signature) linkedParams() []int {
	var idx []int
	for i, p := range s.Params {
		if strings.Contains(p.Annotation, "ListNode") {
			idx = append(idx, i)
		}
	}
	return idx
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				if s[i] != ')' {
					return -1
				}
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

const listNodeHelper = `
class ListNode(object):
    def __init__(self, val=0, next=None):
        self.val = val
        self.next = next

    def __repr__(self):
        out = []
        node = self
        while node:
            out.append(node.val)
            node = node.next
        return str(out)


def linkedList(values):
    if not values:
        return None
    head = curr = ListNode(values[0])
    for v in values[1:]:
        curr.next = ListNode(v)
        curr = curr.next
    return head
`

// harness is one assembled program plus the markers its driver prints.
type harness struct {
	Source       string
	ResultMarker string
	TimeMarker   string
}

// buildHarness wraps the contestant source with the helper definitions and a
// driver that reads the argument tuples from stdin. Markers carry a random
// nonce so contestant output cannot forge results.
func buildHarness(problem model.Problem, code string) (harness, error) {
	sig, err := ParseSignature(problem.FunctionSignature)
	if err != nil {
		return harness{}, err
	}
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	h := harness{
		ResultMarker: "@@result-" + nonce + "@@",
		TimeMarker:   "@@elapsed-" + nonce + "@@",
	}

	var sb strings.Builder
	sb.WriteString("import sys\nimport json\nimport time\nfrom typing import *\n")
	if strings.Contains(problem.FunctionSignature, "ListNode") || strings.Contains(code, "ListNode") {
		sb.WriteString(listNodeHelper)
	}
	sb.WriteString("\n")
	sb.WriteString(code)
	sb.WriteString("\n\n\n")

	entry := sig.Name
	if sig.Method {
		entry = "Solution()." + sig.Name
	}
	linked := sig.linkedParams()
	idx := make([]string, len(linked))
	for i, n := range linked {
		idx[i] = fmt.Sprint(n)
	}

	fmt.Fprintf(&sb, `def __leetduel_main():
    cases = json.loads(sys.stdin.read() or "[]")
    linked = {%s}
    start = time.perf_counter()
    for args in cases:
        args = [linkedList(a) if i in linked else a for i, a in enumerate(args)]
        result = %s(*args)
        print(%q)
        print(result)
    print(%q)
    print(int((time.perf_counter() - start) * 1000))


__leetduel_main()
`, strings.Join(idx, ", "), entry, h.ResultMarker, h.TimeMarker)
	h.Source = sb.String()
	return h, nil
}

// buildStdin encodes every test-case input as one JSON array of argument lists.
func buildStdin(cases []model.TestCase) (string, error) {
	parts := make([]string, len(cases))
	for i, tc := range cases {
		v, err := ParseLiteral(tc.Input)
		if err != nil {
			return "", fmt.Errorf("test case %d input: %w", i+1, err)
		}
		if !v.IsSequence() {
			v = Value{Kind: KindList, Items: []Value{v}}
		}
		parts[i] = v.JSON()
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}
