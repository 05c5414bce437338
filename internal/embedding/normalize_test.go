package embedding

import "testing"

func TestNormalizeDimension(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		dim  int
		want []float32
	}{
		{"pad", []float32{1.0, 2.0}, 4, []float32{1.0, 2.0, 0.0, 0.0}},
		{"truncate", []float32{1.0, 2.0, 3.0}, 2, []float32{1.0, 2.0}},
		{"exact", []float32{1.0, 2.0}, 2, []float32{1.0, 2.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDimension(tt.in, tt.dim)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeDimension() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NormalizeDimension()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeDimensionIdempotent(t *testing.T) {
	v := []float32{0.1, 0.2, 0.3}
	once := NormalizeDimension(v, 8)
	twice := NormalizeDimension(once, 8)
	if len(once) != 8 || len(twice) != 8 {
		t.Fatalf("expected length 8, got %d and %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("NormalizeDimension not idempotent at %d: %v != %v", i, once[i], twice[i])
		}
	}
}
