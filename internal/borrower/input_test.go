package borrower

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetClampsNumericFields(t *testing.T) {
	in := Default()
	if err := in.Set(FieldCarbonIntensity, "140"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if in.CarbonIntensity != 100 {
		t.Fatalf("carbon intensity = %v, want 100", in.CarbonIntensity)
	}
	if err := in.Set(FieldRevenue, "$1,250,000"); err != nil {
		t.Fatalf("set revenue: %v", err)
	}
	if in.Revenue != 1_250_000 {
		t.Fatalf("revenue = %v, want 1250000", in.Revenue)
	}
	if err := in.Set(FieldDebtToIncomeRatio, "lots"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSetRejectsUnknownField(t *testing.T) {
	in := Default()
	err := in.Set(Field("favourite_colour"), "green")
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestNudgeMovesByStep(t *testing.T) {
	in := Default()
	if err := in.Nudge(FieldLaborCompliance, 15); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if in.LaborCompliance != 100 {
		t.Fatalf("labor compliance = %v, want clamp to 100", in.LaborCompliance)
	}
	if err := in.Nudge(FieldRevenue, -2); err != nil {
		t.Fatalf("nudge revenue: %v", err)
	}
	if in.Revenue != 4_500_000 {
		t.Fatalf("revenue = %v, want 4500000", in.Revenue)
	}
	if err := in.Nudge(FieldIndustry, 1); err == nil {
		t.Fatalf("expected error nudging a text field")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	in := Default()
	snap := in.Snapshot()
	in.CarbonIntensity = 20
	if snap.CarbonIntensity != 80 {
		t.Fatalf("snapshot observed later edit: %v", snap.CarbonIntensity)
	}
}

func TestChangedReportsFieldsInOrder(t *testing.T) {
	prev := Default()
	next := prev
	next.CashFlowStability = 10
	next.Revenue = 1
	next.Industry = "Textiles"
	got := Changed(prev, next)
	want := []Field{FieldIndustry, FieldRevenue, FieldCashFlowStability}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changed fields mismatch (-want +got):\n%s", diff)
	}
	if len(Changed(prev, prev)) != 0 {
		t.Fatalf("expected no changes for identical inputs")
	}
}

func TestWatchedFieldsAreSliders(t *testing.T) {
	for _, field := range WatchedFields {
		spec, ok := Lookup(field)
		if !ok {
			t.Fatalf("watched field %s missing from registry", field)
		}
		if spec.Kind != KindNumeric {
			t.Fatalf("watched field %s is not numeric", field)
		}
	}
	if IsWatched(FieldCreditHistory) {
		t.Fatalf("credit history must not be watched")
	}
}

func TestLoadMergesDefaultsAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "borrower.yaml")
	body := "industry: Agriculture\ncarbon_intensity: 250\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if in.Industry != "Agriculture" {
		t.Fatalf("industry = %q", in.Industry)
	}
	if in.CarbonIntensity != 100 {
		t.Fatalf("carbon intensity = %v, want 100", in.CarbonIntensity)
	}
	if in.Revenue != Default().Revenue {
		t.Fatalf("expected default revenue to survive, got %v", in.Revenue)
	}
}

func TestSpecFraction(t *testing.T) {
	in := Default()
	spec, ok := Lookup(FieldCarbonIntensity)
	if !ok {
		t.Fatalf("carbon intensity not registered")
	}
	if got := spec.Fraction(in); got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}
	text, _ := Lookup(FieldIndustry)
	if text.Fraction(in) != 0 {
		t.Fatalf("text fields have no fraction")
	}
}
