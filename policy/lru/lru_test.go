package lru

import (
	"testing"

	"github.com/IvanBrykalov/maprender/policy"
)

type testNode struct {
	k string
	v int
}

func (n *testNode) Key() string { return n.k }
func (n *testNode) Value() *int { return &n.v }

type mockHooks struct {
	pushFront, moveToFront, remove int
	last                           policy.Node[string, int]
}

func (h *mockHooks) MoveToFront(n policy.Node[string, int]) { h.moveToFront++; h.last = n }
func (h *mockHooks) PushFront(n policy.Node[string, int])   { h.pushFront++; h.last = n }
func (h *mockHooks) Remove(n policy.Node[string, int])      { h.remove++; h.last = n }
func (h *mockHooks) Back() policy.Node[string, int]         { return nil }
func (h *mockHooks) Len() int                               { return 0 }
func (h *mockHooks) Evictable(policy.Node[string, int]) bool {
	return true
}

func TestLRU_Hooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		op                 func(policy.ShardPolicy[string, int], policy.Node[string, int])
		push, move, remove int
		wantLast           bool
	}{
		{"add pushes to MRU", func(p policy.ShardPolicy[string, int], n policy.Node[string, int]) {
			if ev := p.OnAdd(n); ev != nil {
				t.Errorf("LRU must not propose evictions, got %v", ev)
			}
		}, 1, 0, 0, true},
		{"get promotes", func(p policy.ShardPolicy[string, int], n policy.Node[string, int]) { p.OnGet(n) }, 0, 1, 0, true},
		{"update promotes", func(p policy.ShardPolicy[string, int], n policy.Node[string, int]) { p.OnUpdate(n) }, 0, 1, 0, true},
		{"remove is a no-op", func(p policy.ShardPolicy[string, int], n policy.Node[string, int]) { p.OnRemove(n) }, 0, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &mockHooks{}
			p := New[string, int]().New(h)
			n := &testNode{k: "tile", v: 1}
			tc.op(p, n)
			if h.pushFront != tc.push || h.moveToFront != tc.move || h.remove != tc.remove {
				t.Fatalf("hooks push=%d move=%d remove=%d", h.pushFront, h.moveToFront, h.remove)
			}
			if tc.wantLast && h.last != n {
				t.Fatal("hook received a different node")
			}
		})
	}
}
