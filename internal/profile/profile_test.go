package profile

import "testing"

func TestRecord_DecisionProgression(t *testing.T) {
	p := New(Config{JitThreshold: 3, AotThreshold: 6, SampleWindow: 4})
	var c Counter

	want := []Decision{
		KeepInterpreting, KeepInterpreting,
		PromoteToJit, PromoteToJit, PromoteToJit,
		PromoteToAot, PromoteToAot,
	}
	for i, w := range want {
		if got := p.Record(&c); got != w {
			t.Fatalf("execution %d: decision = %v, want %v", i+1, got, w)
		}
	}
	if c.Raw() != uint64(len(want)) {
		t.Fatalf("Raw = %d, want %d", c.Raw(), len(want))
	}
}

func TestNew_CoercesInvalidConfig(t *testing.T) {
	p := New(Config{})
	def := DefaultConfig()
	if p.Config() != def {
		t.Fatalf("Config = %+v, want defaults %+v", p.Config(), def)
	}

	// AOT threshold at or below JIT is pushed above it.
	p = New(Config{JitThreshold: 50, AotThreshold: 50, SampleWindow: 8})
	if got := p.Config().AotThreshold; got <= 50 {
		t.Fatalf("AotThreshold = %d, want > 50", got)
	}
}

func TestCounter_RateAndDecay(t *testing.T) {
	p := New(DefaultConfig())
	var c Counter
	for i := 0; i < 100; i++ {
		p.Record(&c)
	}
	rate := c.Rate()
	if rate <= 0 {
		t.Fatalf("Rate = %v, want > 0 after a burst", rate)
	}

	c.Decay(0.5)
	if got := c.Rate(); got >= rate || got != rate*0.5 {
		t.Fatalf("Rate after decay = %v, want %v", got, rate*0.5)
	}
}

func TestCounter_Reset(t *testing.T) {
	p := New(DefaultConfig())
	var c Counter
	for i := 0; i < 20; i++ {
		p.Record(&c)
	}
	c.Reset()
	if c.Raw() != 0 || c.Rate() != 0 {
		t.Fatalf("after Reset: raw=%d rate=%v, want zeros", c.Raw(), c.Rate())
	}
	if got := p.Record(&c); got != KeepInterpreting {
		t.Fatalf("first execution after reset = %v, want KeepInterpreting", got)
	}
}

func TestDecision_String(t *testing.T) {
	if KeepInterpreting.String() != "keep-interpreting" {
		t.Fatal("KeepInterpreting name")
	}
	if PromoteToAot.String() != "promote-aot" {
		t.Fatal("PromoteToAot name")
	}
	if Decision(99).String() != "unknown" {
		t.Fatal("out-of-range decision name")
	}
}
