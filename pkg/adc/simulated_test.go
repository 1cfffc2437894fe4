package adc

import "testing"

func TestSimulated_ReadReportsOK(t *testing.T) {
	s := NewSimulated()
	if err := s.Init(Config{Gain: 16, AverageWindow: 8}); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	_, flags, ok := s.ReadMicrovolts(100)
	if !ok {
		t.Fatal("expected ok=true from Simulated.ReadMicrovolts")
	}
	if flags&0x08 != 0 {
		t.Fatal("did not expect saturation flag by default")
	}
}

func TestSimulated_ForceTimeout(t *testing.T) {
	s := NewSimulated()
	_ = s.Init(Config{Gain: 16, AverageWindow: 8})
	s.ForceTimeout(true)
	_, flags, ok := s.ReadMicrovolts(100)
	if ok {
		t.Fatal("expected ok=false when timeout is forced")
	}
	if flags&0x02 == 0 {
		t.Fatal("expected timeout flag to be set")
	}
}

func TestSimulated_ForceSaturation(t *testing.T) {
	s := NewSimulated()
	_ = s.Init(Config{Gain: 16, AverageWindow: 1})
	s.ForceSaturation(true)
	_, flags, ok := s.ReadMicrovolts(100)
	if !ok {
		t.Fatal("expected ok=true even when saturated")
	}
	if flags&0x08 == 0 {
		t.Fatal("expected saturation flag to be set")
	}
}

func TestAverager_SeedsOnFirstSample(t *testing.T) {
	a := averager{window: 4}
	got := a.apply(1000)
	if got != 1000 {
		t.Fatalf("first sample should seed the filter, got %d", got)
	}
	got = a.apply(2000)
	want := int32(1000 + (2000-1000)/4)
	if got != want {
		t.Fatalf("apply() = %d, want %d", got, want)
	}
}

func TestScaleRawCode_ZeroGainFallsBackToOne(t *testing.T) {
	a := scaleRawCode(1000, 0)
	b := scaleRawCode(1000, 1)
	if a != b {
		t.Fatalf("scaleRawCode with gain=0 should behave like gain=1: got %d vs %d", a, b)
	}
}
