package keyspace

import (
	"bytes"
	"errors"
	"testing"
)

func TestClassify_Ordinary(t *testing.T) {
	tests := []struct {
		name  string
		begin []byte
		end   []byte
	}{
		{"plain key", []byte("abc"), SingleKeyEnd([]byte("abc"))},
		{"empty begin", []byte{}, []byte("zzz")},
		{"up to system boundary", []byte("a"), []byte{0xff}},
		{"high ordinary key", []byte{0xfe, 0xff, 0xff}, []byte{0xfe, 0xff, 0xff, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.begin, tt.end); got != ClassOrdinary {
				t.Errorf("Classify() = %v, want %v", got, ClassOrdinary)
			}
			if err := Check(tt.begin, tt.end); err != nil {
				t.Errorf("Check() = %v, want nil", err)
			}
		})
	}
}

func TestClassify_System(t *testing.T) {
	tests := []struct {
		name  string
		begin []byte
		end   []byte
	}{
		{"whole system range", []byte{0xff}, []byte{0xff, 0xff}},
		{"single system key", []byte{0xff, 'x'}, SingleKeyEnd([]byte{0xff, 'x'})},
		{"ordinary spanning into system", []byte{}, []byte{0xff, 0x01}},
		{"full keyspace scan", []byte{}, []byte{0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.begin, tt.end); got != ClassSystem {
				t.Errorf("Classify() = %v, want %v", got, ClassSystem)
			}
			err := Check(tt.begin, tt.end)
			var denied *DeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("Check() = %v, want *DeniedError", err)
			}
			if denied.Class != ClassSystem {
				t.Errorf("denied class = %v, want %v", denied.Class, ClassSystem)
			}
		})
	}
}

func TestClassify_SpecialRanges(t *testing.T) {
	for _, r := range SpecialRanges {
		t.Run(r.Label, func(t *testing.T) {
			if got := Classify(r.Begin, r.End); got != ClassSpecial {
				t.Errorf("Classify() = %v, want %v", got, ClassSpecial)
			}
			err := Check(r.Begin, r.End)
			var denied *DeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("Check() = %v, want *DeniedError", err)
			}
			if denied.Class != ClassSpecial {
				t.Errorf("denied class = %v, want %v", denied.Class, ClassSpecial)
			}
			if denied.Label != r.Label {
				t.Errorf("denied label = %q, want %q", denied.Label, r.Label)
			}
		})
	}
}

func TestClassify_SpecialSubRange(t *testing.T) {
	// A strict sub-range of an administrative range must still be refused;
	// the guard works by interval overlap, not prefix equality.
	base := SpecialRanges[3] // conflicting keys
	begin := append(append([]byte{}, base.Begin...), 'a')
	end := append(append([]byte{}, base.Begin...), 'b')

	if got := Classify(begin, end); got != ClassSpecial {
		t.Errorf("Classify(sub-range) = %v, want %v", got, ClassSpecial)
	}
}

func TestClassify_RangeOverlappingOutward(t *testing.T) {
	// A scan that starts below all tenant data and extends into the special
	// keyspace is denied as a whole.
	end := append(append([]byte{}, SpecialRanges[0].Begin...), 0x00)
	if got := Classify([]byte{}, end); got != ClassSpecial {
		t.Errorf("Classify() = %v, want %v", got, ClassSpecial)
	}
}

func TestRange_Overlaps(t *testing.T) {
	r := Range{Begin: []byte("d"), End: []byte("g")}

	tests := []struct {
		name  string
		begin string
		end   string
		want  bool
	}{
		{"disjoint below", "a", "c", false},
		{"touching below", "a", "d", false},
		{"overlapping low edge", "a", "e", true},
		{"inside", "e", "f", true},
		{"covering", "a", "z", true},
		{"touching above", "g", "h", false},
		{"disjoint above", "x", "z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps([]byte(tt.begin), []byte(tt.end)); got != tt.want {
				t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.begin, tt.end, got, tt.want)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	r := SpecialRanges[0]
	if !r.Contains(r.Begin) {
		t.Error("Contains(Begin) = false, want true")
	}
	if r.Contains(r.End) {
		t.Error("Contains(End) = true, want false")
	}
}

func TestSpecialRanges_InsideSpecialKeyspace(t *testing.T) {
	for _, r := range SpecialRanges {
		if !bytes.HasPrefix(r.Begin, SpecialBegin) {
			t.Errorf("range %q begin %x not under special prefix", r.Label, r.Begin)
		}
		if bytes.Compare(r.Begin, r.End) >= 0 {
			t.Errorf("range %q has begin >= end", r.Label)
		}
	}
}

func TestCheckKey(t *testing.T) {
	if err := CheckKey([]byte("ordinary")); err != nil {
		t.Errorf("CheckKey(ordinary) = %v, want nil", err)
	}
	if err := CheckKey([]byte{0xff, 0x00}); err == nil {
		t.Error("CheckKey(system key) = nil, want error")
	}
	killStorage := append(append([]byte{}, SpecialBegin...), "/globals/killStorage"...)
	if err := CheckKey(killStorage); err == nil {
		t.Error("CheckKey(kill storage) = nil, want error")
	}
}

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassOrdinary, "ordinary"},
		{ClassSystem, "system"},
		{ClassSpecial, "special"},
		{Class(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("Class(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func BenchmarkCheck_Ordinary(b *testing.B) {
	begin := []byte("tenant-data/row/0001")
	end := SingleKeyEnd(begin)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Check(begin, end)
	}
}

func BenchmarkCheck_Special(b *testing.B) {
	begin := append(append([]byte{}, SpecialBegin...), "/globalKnobs"...)
	end := SingleKeyEnd(begin)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Check(begin, end)
	}
}
