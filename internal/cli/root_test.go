package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantRole string
		branches int
		wantErr  bool
	}{
		{"name only", "asha", "asha", "", 0, false},
		{"name and role", "asha:Operations", "asha", "operations", 0, false},
		{"branches", "ravi:branch_staff:north, south", "ravi", "branch_staff", 2, false},
		{"unknown role", "ravi:chef", "", "", 0, true},
		{"empty name", ":admin", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := parseOperator(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if op.Name != tt.wantName || op.Role != tt.wantRole || len(op.Branches) != tt.branches {
				t.Errorf("unexpected operator %+v", op)
			}
		})
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := RootCmd("test")

	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"manifest", "create"},
		{"manifest", "list"},
		{"manifest", "show"},
		{"manifest", "delete"},
		{"branch", "update"},
		{"branch", "resolve"},
		{"late-item", "add"},
		{"archive", "list"},
		{"archive", "show"},
		{"units", "infer"},
		{"token"},
		{"dev", "seed"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %s not registered", strings.Join(path, " "))
		}
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid plan", func(t *testing.T) {
		path := filepath.Join(dir, "plan.yaml")
		body := `
delivery_date: 2026-10-15
branches:
  - slug: north
    name: North Kitchen
    items:
      - name: Basmati Rice
        ordered_qty: 50
      - name: Sunflower Oil
        unit: LTR
        ordered_qty: "12.5"
  - slug: south
    items:
      - name: Eggs
        ordered_qty: 30
`
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}

		req, err := loadPlan(path)
		if err != nil {
			t.Fatalf("loadPlan failed: %v", err)
		}
		if req.DeliveryDate != "2026-10-15" {
			t.Errorf("expected delivery date 2026-10-15, got %q", req.DeliveryDate)
		}
		if len(req.Branches) != 2 || len(req.Branches[0].Items) != 2 {
			t.Fatalf("unexpected branches %+v", req.Branches)
		}
		oil := req.Branches[0].Items[1]
		if oil.Unit != "LTR" || !oil.OrderedQty.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("unexpected item %+v", oil)
		}
		if req.Branches[1].Items[0].Unit != "" {
			t.Errorf("omitted unit should stay empty for inference, got %q", req.Branches[1].Items[0].Unit)
		}
	})

	t.Run("no branches", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, []byte("delivery_date: 2026-10-15\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := loadPlan(path); err == nil {
			t.Error("expected error for plan without branches")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadPlan(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected error for missing plan")
		}
	})
}
