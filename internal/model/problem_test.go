package model

import "testing"

func TestPublicShowsFirstCaseOnly(t *testing.T) {
	p := Problem{Name: "Two Sum", TestCases: []TestCase{
		{Input: "([2,7], 9)", Output: "[0, 1]"},
		{Input: "([3,3], 6)", Output: "[0, 1]"},
	}}
	pub := p.Public()
	if len(pub.TestCases) != 1 {
		t.Fatalf("expected one visible case, got %d", len(pub.TestCases))
	}
	if pub.TestCases[0] != p.TestCases[0] {
		t.Fatalf("visible example should keep its output, got %+v", pub.TestCases[0])
	}
	if len(p.TestCases) != 2 {
		t.Fatal("original problem must keep its hidden cases")
	}
	if (Problem{}).Public().TestCases != nil {
		t.Fatal("problem without cases has no example")
	}
}
