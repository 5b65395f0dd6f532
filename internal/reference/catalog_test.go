package reference

import (
	"testing"

	"github.com/lab-report-analyzer/internal/domain"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		code    string
		wantMin float64
		wantMax float64
		found   bool
	}{
		{"hemoglobin", 12.0, 17.0, true},
		{"glucose_fasting", 70, 100, true},
		{"platelet_count", 150000, 400000, true},
		{"ag_ratio", 1.0, 2.5, true},
		{"no_such_test", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, ok := c.Lookup(tt.code)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.code, ok, tt.found)
			}
			if !tt.found {
				return
			}
			if r.Bounds.Min != tt.wantMin || r.Bounds.Max != tt.wantMax {
				t.Errorf("Lookup(%q) bounds = [%v, %v], want [%v, %v]",
					tt.code, r.Bounds.Min, r.Bounds.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestLookupForSex(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name    string
		code    string
		sex     domain.Sex
		wantMin float64
		wantMax float64
	}{
		{"hemoglobin male", "hemoglobin", domain.SexMale, 13.5, 17.5},
		{"hemoglobin female", "hemoglobin", domain.SexFemale, 12.0, 16.0},
		{"hemoglobin unknown keeps default", "hemoglobin", domain.SexUnknown, 12.0, 17.0},
		{"pus cells female", "pus_cells", domain.SexFemale, 3, 7},
		{"pus cells male", "pus_cells", domain.SexMale, 0, 4},
		{"no override falls through", "glucose_fasting", domain.SexMale, 70, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := c.LookupForSex(tt.code, tt.sex)
			if !ok {
				t.Fatalf("LookupForSex(%q, %v) not found", tt.code, tt.sex)
			}
			if r.Bounds.Min != tt.wantMin || r.Bounds.Max != tt.wantMax {
				t.Errorf("bounds = [%v, %v], want [%v, %v]",
					r.Bounds.Min, r.Bounds.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestLookupForSexDoesNotMutateCatalog(t *testing.T) {
	c := DefaultCatalog()

	if _, ok := c.LookupForSex("hemoglobin", domain.SexMale); !ok {
		t.Fatal("hemoglobin not found")
	}
	r, _ := c.Lookup("hemoglobin")
	if r.Bounds.Min != 12.0 || r.Bounds.Max != 17.0 {
		t.Errorf("shared entry mutated: bounds = [%v, %v]", r.Bounds.Min, r.Bounds.Max)
	}
}

func TestIsCriticalValue(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name  string
		code  string
		value float64
		want  bool
	}{
		{"hemoglobin below critical low", "hemoglobin", 7.5, true},
		{"hemoglobin above critical high", "hemoglobin", 21.0, true},
		{"hemoglobin merely low", "hemoglobin", 10.0, false},
		{"potassium critical high", "potassium", 7.0, true},
		{"mcv has no thresholds", "mcv", 500, false},
		{"unknown code", "bogus", 1e9, false},
		{"at threshold is not critical", "hemoglobin", 8.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsCriticalValue(tt.code, tt.value); got != tt.want {
				t.Errorf("IsCriticalValue(%q, %v) = %v, want %v", tt.code, tt.value, got, tt.want)
			}
		})
	}
}

func TestCodesCoversCatalog(t *testing.T) {
	c := DefaultCatalog()
	codes := c.Codes()
	if len(codes) != c.Len() {
		t.Fatalf("Codes() returned %d entries, catalog has %d", len(codes), c.Len())
	}
	for _, code := range codes {
		if _, ok := c.Lookup(code); !ok {
			t.Errorf("Codes() lists %q but Lookup misses it", code)
		}
	}
}
