package packs

import (
	"context"
	"path/filepath"
	"testing"
)

func testIndex() *Index {
	return &Index{
		Packs: []IndexPack{
			{
				Pack: Pack{Vendor: "ARM", Name: "CMSIS", Version: "5.9.0", Required: true},
				Components: []Component{
					{Class: "CMSIS", Group: "CORE", Version: "5.6.0"},
					{Class: "RTOS", Group: "Kernel", Sub: "Core", Version: "2.1.0"},
				},
			},
			{
				Pack: Pack{Vendor: "ARM", Name: "CMSIS", Version: "5.8.0", Required: true},
				Components: []Component{
					{Class: "CMSIS", Group: "CORE", Version: "5.5.0"},
				},
			},
			{
				Pack: Pack{Vendor: "Keil", Name: "STM32F4_DFP", Version: "2.16.0"},
				Devices: []Device{
					{Name: "STM32F407", Vendor: "STMicroelectronics", Processor: "cortex-m4"},
				},
				Boards: []Board{
					{Name: "DISCO-F407", Vendor: "STMicroelectronics", Device: "STM32F407"},
				},
				Components: []Component{
					{Class: "Device", Group: "Startup", Version: "1.2.0"},
				},
			},
		},
		Toolchains: []Toolchain{
			{Name: "gcc", Version: "12.2.0", Root: "/opt/gcc-12"},
			{Name: "gcc", Version: "10.3.1", Root: "/opt/gcc-10"},
			{Name: "clang", Version: "17.0.1"},
		},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := NewCatalog(Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	ctx := context.Background()
	if err := cat.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	if err := cat.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := cat.Sync(ctx, testIndex()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	return cat
}

func TestPackVersionsNewestFirst(t *testing.T) {
	cat := newTestCatalog(t)

	packs, err := cat.PackVersions(context.Background(), "ARM", "CMSIS")
	if err != nil {
		t.Fatalf("PackVersions failed: %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("got %d versions, want 2", len(packs))
	}
	if packs[0].Version != "5.9.0" || packs[1].Version != "5.8.0" {
		t.Errorf("versions not newest first: %s, %s", packs[0].Version, packs[1].Version)
	}
}

func TestRequiredPacks(t *testing.T) {
	cat := newTestCatalog(t)

	packs, err := cat.RequiredPacks(context.Background())
	if err != nil {
		t.Fatalf("RequiredPacks failed: %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("got %d required packs, want 2", len(packs))
	}
	for _, p := range packs {
		if p.Name != "CMSIS" {
			t.Errorf("unexpected required pack %s", p.ID())
		}
	}
}

func TestFindDeviceAndBoard(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	dev, err := cat.FindDevice(ctx, "STM32F407")
	if err != nil {
		t.Fatalf("FindDevice failed: %v", err)
	}
	if dev.Processor != "cortex-m4" || dev.PackID != "Keil::STM32F4_DFP@2.16.0" {
		t.Errorf("unexpected device: %+v", dev)
	}

	board, err := cat.FindBoard(ctx, "DISCO-F407")
	if err != nil {
		t.Fatalf("FindBoard failed: %v", err)
	}
	if board.Device != "STM32F407" {
		t.Errorf("unexpected board: %+v", board)
	}

	if _, err := cat.FindDevice(ctx, "nRF52840"); err == nil {
		t.Error("expected error for unknown device")
	}
}

func TestFindComponents(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	// Unrestricted search finds both CMSIS pack versions.
	comps, err := cat.FindComponents(ctx, nil, "CMSIS", "CORE", "")
	if err != nil {
		t.Fatalf("FindComponents failed: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2", len(comps))
	}

	// Restricting to one pack narrows the result.
	comps, err = cat.FindComponents(ctx, []string{"ARM::CMSIS@5.9.0"}, "CMSIS", "CORE", "")
	if err != nil {
		t.Fatalf("FindComponents failed: %v", err)
	}
	if len(comps) != 1 || comps[0].Version != "5.6.0" {
		t.Errorf("unexpected components: %+v", comps)
	}

	// Sub-group match.
	comps, err = cat.FindComponents(ctx, nil, "RTOS", "Kernel", "Core")
	if err != nil {
		t.Fatalf("FindComponents failed: %v", err)
	}
	if len(comps) != 1 || comps[0].ID() != "RTOS:Kernel:Core" {
		t.Errorf("unexpected components: %+v", comps)
	}
}

func TestFindToolchain(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	// No version: newest wins.
	tc, err := cat.FindToolchain(ctx, "gcc", "")
	if err != nil {
		t.Fatalf("FindToolchain failed: %v", err)
	}
	if tc.Version != "12.2.0" {
		t.Errorf("got version %s, want 12.2.0", tc.Version)
	}

	// Exact version.
	tc, err = cat.FindToolchain(ctx, "gcc", "10.3.1")
	if err != nil {
		t.Fatalf("FindToolchain failed: %v", err)
	}
	if tc.Root != "/opt/gcc-10" {
		t.Errorf("got root %s, want /opt/gcc-10", tc.Root)
	}

	if _, err := cat.FindToolchain(ctx, "armclang", ""); err == nil {
		t.Error("expected error for unknown toolchain")
	}
}

func TestSyncReplacesContents(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	if err := cat.Sync(ctx, &Index{
		Packs: []IndexPack{{Pack: Pack{Vendor: "Nordic", Name: "nRF_DFP", Version: "1.0.0"}}},
	}); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	packs, err := cat.ListPacks(ctx)
	if err != nil {
		t.Fatalf("ListPacks failed: %v", err)
	}
	if len(packs) != 1 || packs[0].ID() != "Nordic::nRF_DFP@1.0.0" {
		t.Errorf("sync did not replace contents: %+v", packs)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.0", "1.10.0", -1},
		{"5.9.0", "5.8.0", 1},
		{"2.0", "2.0.1", -1},
		{"1.0.a", "1.0.b", -1},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
