package ijtiff

import "testing"

func TestLifetimeOverlayFullIntensity(t *testing.T) {
	// With no intensity image the overlay is the plain colormapped lifetime.
	lt := constChannel(2, 2, 5)
	out, err := LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.LUT = "gray"
	})
	if err != nil {
		t.Fatal(err)
	}
	// Lifetime 5 sits at the top of the default (0, 5) window.
	for i, v := range out.Uint8Data() {
		if v != 255 {
			t.Fatalf("sample %d = %d, want 255", i, v)
		}
	}
}

func TestLifetimeOverlayIntensityWeighting(t *testing.T) {
	lt := constChannel(2, 2, 5)
	dark := constChannel(2, 2, 0)
	out, err := LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.LUT = "gray"
		o.Intensity = dark
		o.IntensityRange = &Range{Min: 0, Max: 1}
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Uint8Data() {
		if v != 0 {
			t.Fatalf("zero intensity should black out the overlay, sample %d = %d", i, v)
		}
	}

	half := constChannel(2, 2, 0.5)
	out, err = LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.LUT = "gray"
		o.Intensity = half
		o.IntensityRange = &Range{Min: 0, Max: 1}
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Uint8Data() {
		if v < 126 || v > 129 {
			t.Fatalf("half intensity should halve the value, sample %d = %d", i, v)
		}
	}
}

func TestFractionOverlay(t *testing.T) {
	// A pure first-channel fraction mixes into the other two output
	// channels: cyan at full brightness.
	fractions, err := Stack(constChannel(2, 2, 1), constChannel(2, 2, 0), constChannel(2, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	out, err := FractionOverlay(fractions, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	pix := out.Uint8Data()
	for i := 0; i < 4; i++ {
		if pix[i] != 0 || pix[4+i] != 255 || pix[8+i] != 255 {
			t.Fatalf("pixel %d = (%d, %d, %d), want cyan", i, pix[i], pix[4+i], pix[8+i])
		}
	}

	dark, err := FractionOverlay(fractions, constChannel(2, 2, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range dark.Uint8Data() {
		if v != 0 {
			t.Fatalf("zero intensity should black out the overlay, sample %d = %d", i, v)
		}
	}
}

func TestFractionOverlayErrors(t *testing.T) {
	if _, err := FractionOverlay(constChannel(2, 2, 1), nil, nil); err == nil {
		t.Fatalf("expected error for 2-D fraction map")
	}
	fractions, _ := Stack(constChannel(2, 2, 1), constChannel(2, 2, 0), constChannel(2, 2, 0))
	if _, err := FractionOverlay(fractions, constChannel(3, 3, 1), nil); err == nil {
		t.Fatalf("expected intensity shape mismatch error")
	}
	if _, err := FractionOverlay(fractions, constChannel(2, 2, 1), &Range{Min: 1, Max: 1}); err == nil {
		t.Fatalf("expected degenerate range error")
	}
}

func TestLifetimeOverlayErrors(t *testing.T) {
	lt := constChannel(2, 2, 1)
	if _, err := LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.Intensity = constChannel(3, 3, 1)
	}); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.LifetimeRange = &Range{Min: 1, Max: 1}
	}); err == nil {
		t.Fatalf("expected degenerate range error")
	}
	stack, _ := Stack(lt, lt)
	if _, err := LifetimeOverlay(stack); err == nil {
		t.Fatalf("expected error for 3-D lifetime")
	}
	if _, err := LifetimeOverlay(lt, func(o *OverlayOptions) {
		o.LUT = "no-such-colormap"
	}); err == nil {
		t.Fatalf("expected unknown lut error")
	}
}
