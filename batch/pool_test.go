package batch

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
	"github.com/chazu/bcverify/wire"
)

type memCache struct {
	mu       sync.Mutex
	verdicts map[[32]byte]hierarchy.Verdict
	hits     int
}

func newMemCache() *memCache {
	return &memCache{verdicts: make(map[[32]byte]hierarchy.Verdict)}
}

func (c *memCache) LookupVerdict(hash [32]byte) (hierarchy.Verdict, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.verdicts[hash]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memCache) RecordVerdict(hash [32]byte, v hierarchy.Verdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[hash] = v
	return nil
}

// testMethod returns a valid method when ok is set and one that underflows
// the stack otherwise.
func testMethod(name string, ok bool) *bytecode.Method {
	ins := []bytecode.Instruction{{Offset: 0, Op: bytecode.OpIconst0}, {Offset: 1, Op: bytecode.OpIreturn}}
	if !ok {
		ins = []bytecode.Instruction{{Offset: 0, Op: bytecode.OpIadd}, {Offset: 1, Op: bytecode.OpIreturn}}
	}
	return &bytecode.Method{
		Class: "app/T", Name: name, Descriptor: "()I", Static: true, MaxStack: 2,
		Code: &bytecode.Graph{Blocks: []*bytecode.Block{{Instructions: ins}}},
	}
}

func TestVerifyAll(t *testing.T) {
	p := NewPool(hierarchy.NewRegistry(), Options{Workers: 3})
	defer p.Stop()

	var methods []*bytecode.Method
	for i := 0; i < 20; i++ {
		methods = append(methods, testMethod(fmt.Sprintf("m%d", i), i%3 != 0))
	}
	reports := p.VerifyAll(methods)
	if len(reports) != len(methods) {
		t.Fatalf("len(reports) = %d, want %d", len(reports), len(methods))
	}
	for i, r := range reports {
		if r.Method != methods[i].String() {
			t.Errorf("reports[%d].Method = %q, want %q", i, r.Method, methods[i].String())
		}
		want := i%3 != 0
		if r.OK != want {
			t.Errorf("reports[%d].OK = %v, want %v", i, r.OK, want)
		}
		if !want && r.Kind != wire.KindStack {
			t.Errorf("reports[%d].Kind = %q, want %q", i, r.Kind, wire.KindStack)
		}
		if r.Run != p.RunID() {
			t.Errorf("reports[%d].Run = %q, want %q", i, r.Run, p.RunID())
		}
	}
	if !strings.HasPrefix(p.RunID(), "run_") {
		t.Errorf("RunID() = %q, want run_ prefix", p.RunID())
	}
}

func TestVerdictCache(t *testing.T) {
	cache := newMemCache()
	p := NewPool(hierarchy.NewRegistry(), Options{Workers: 2, Cache: cache})
	defer p.Stop()

	good, bad := testMethod("good", true), testMethod("bad", false)
	first := p.VerifyAll([]*bytecode.Method{good, bad})
	if first[0].Cached || first[1].Cached {
		t.Fatal("first run served from cache")
	}

	second := p.VerifyAll([]*bytecode.Method{good, bad})
	for i, r := range second {
		if !r.Cached {
			t.Errorf("second[%d].Cached = false, want true", i)
		}
		if r.OK != first[i].OK || r.Kind != first[i].Kind || r.Error != first[i].Error {
			t.Errorf("second[%d] = %+v, want verdict of %+v", i, r, first[i])
		}
	}
	if cache.hits != 2 {
		t.Errorf("cache hits = %d, want 2", cache.hits)
	}

	salted := NewPool(hierarchy.NewRegistry(), Options{Workers: 1, Cache: cache, Salt: []byte("classpath-2")})
	defer salted.Stop()
	if r := salted.Verify(good); r.Cached {
		t.Error("salted pool hit an unsalted verdict")
	}
}

// A cached verdict still lists the classes the original run assumed
// compatible.
func TestVerdictCacheKeepsMissing(t *testing.T) {
	p := NewPool(hierarchy.NewRegistry(), Options{Workers: 1, Cache: newMemCache()})
	defer p.Stop()

	m := &bytecode.Method{
		Class: "app/T", Name: "lenient", Descriptor: "()Lapp/Base;", Static: true, MaxStack: 1,
		Code: &bytecode.Graph{Blocks: []*bytecode.Block{{Instructions: []bytecode.Instruction{
			{Offset: 0, Op: bytecode.OpGetstatic, Ref: &bytecode.MemberRef{Owner: "app/T", Name: "c", Descriptor: "Lapp/Circle;"}},
			{Offset: 1, Op: bytecode.OpAreturn},
		}}}},
	}
	first := p.Verify(m)
	if !first.OK || len(first.Missing) == 0 {
		t.Fatalf("first = %+v, want ok with missing classes", first)
	}
	second := p.Verify(m)
	if !second.Cached {
		t.Fatal("second run not served from cache")
	}
	if !reflect.DeepEqual(second.Missing, first.Missing) {
		t.Errorf("cached Missing = %v, want %v", second.Missing, first.Missing)
	}
}

// panicResolver fails every lookup by panicking.
type panicResolver struct{}

func (panicResolver) Lookup(name string) (*hierarchy.Class, error) {
	panic("lookup of " + name)
}

func TestPanicBecomesReport(t *testing.T) {
	p := NewPool(panicResolver{}, Options{Workers: 1})
	defer p.Stop()

	m := &bytecode.Method{
		Class: "app/T", Name: "broken", Descriptor: "()Lapp/Base;", Static: true, MaxStack: 1,
		Code: &bytecode.Graph{Blocks: []*bytecode.Block{{Instructions: []bytecode.Instruction{
			{Offset: 0, Op: bytecode.OpGetstatic, Ref: &bytecode.MemberRef{Owner: "app/T", Name: "c", Descriptor: "Lapp/Circle;"}},
			{Offset: 1, Op: bytecode.OpAreturn},
		}}}},
	}
	r := p.Verify(m)
	if r.OK {
		t.Fatal("OK = true, want false")
	}
	if r.Kind != wire.KindStructural {
		t.Errorf("Kind = %q, want %q", r.Kind, wire.KindStructural)
	}
	if !strings.HasPrefix(r.Error, "internal error: ") {
		t.Errorf("Error = %q, want internal error", r.Error)
	}
	if r.Run != p.RunID() {
		t.Errorf("Run = %q, want %q", r.Run, p.RunID())
	}

	// The worker survives the panic.
	if r := p.Verify(testMethod("after", true)); !r.OK {
		t.Errorf("Verify() after panic = %+v, want ok", r)
	}
}

func TestStopTwice(t *testing.T) {
	p := NewPool(nil, Options{Workers: 1})
	p.Stop()
	p.Stop()
}
