package judge

import (
	"errors"
	"strings"
	"testing"

	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("def twoSum(nums: List[int], target: int) -> List[int]:")
	if err != nil {
		t.Fatalf("should be able to parse signature: %v", err)
	}
	if sig.Name != "twoSum" || sig.Method {
		t.Fatalf("unexpected signature %+v", sig)
	}
	if len(sig.Params) != 2 || sig.Params[0].Name != "nums" || sig.Params[0].Annotation != "List[int]" {
		t.Fatalf("unexpected params %+v", sig.Params)
	}

	sig, err = ParseSignature("  def mergeTwoLists(self, l1: Optional[ListNode], l2: Optional[ListNode] = None) -> Optional[ListNode]:")
	if err != nil {
		t.Fatalf("should be able to parse method signature: %v", err)
	}
	if !sig.Method || sig.Name != "mergeTwoLists" || len(sig.Params) != 2 {
		t.Fatalf("unexpected method signature %+v", sig)
	}
	if got := sig.linkedParams(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected both params linked, got %v", got)
	}

	sig, err = ParseSignature("isPalindrome(s)")
	if err != nil || sig.Name != "isPalindrome" || len(sig.Params) != 1 {
		t.Fatalf("bare signature should parse: %+v %v", sig, err)
	}
}

func TestParseSignatureRejects(t *testing.T) {
	for _, in := range []string{"", "def (x):", "def f(x", "def 1f(x):", "def f(x]:"} {
		if _, err := ParseSignature(in); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%q: expected ErrBadSignature, got %v", in, err)
		}
	}
}

func TestBuildHarness(t *testing.T) {
	p := model.Problem{FunctionSignature: "def twoSum(self, nums: List[int], target: int) -> List[int]:"}
	h, err := buildHarness(p, "class Solution:\n    pass\n")
	if err != nil {
		t.Fatalf("should be able to build harness: %v", err)
	}
	if h.ResultMarker == h.TimeMarker || !strings.Contains(h.Source, h.ResultMarker) || !strings.Contains(h.Source, h.TimeMarker) {
		t.Fatalf("markers missing from source")
	}
	if !strings.Contains(h.Source, "Solution().twoSum(*args)") {
		t.Fatalf("method entry point not used:\n%s", h.Source)
	}
	if strings.Contains(h.Source, "class ListNode") {
		t.Fatalf("list helper should only be injected when needed")
	}

	other, _ := buildHarness(p, "")
	if other.ResultMarker == h.ResultMarker {
		t.Fatalf("markers should differ between runs")
	}

	p.FunctionSignature = "def reverseList(head: Optional[ListNode]) -> Optional[ListNode]:"
	h, err = buildHarness(p, "")
	if err != nil {
		t.Fatalf("should be able to build harness: %v", err)
	}
	if !strings.Contains(h.Source, "class ListNode") || !strings.Contains(h.Source, "linked = {0}") {
		t.Fatalf("linked list support missing:\n%s", h.Source)
	}
}

func TestBuildStdinRejectsBadLiteral(t *testing.T) {
	if _, err := buildStdin([]model.TestCase{{Input: "[1, 2"}}); err == nil {
		t.Fatal("expected error for malformed input literal")
	}
}
