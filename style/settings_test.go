package style

import (
	"image/color"
	"os"
	"strings"
	"testing"
	"unicode"

	"github.com/ByLCY/captioner/dsl"
)

func TestHexColorValidation(t *testing.T) {
	if !IsValidHexColor("#1a2B3c") {
		t.Fatalf("#1a2B3c should be valid")
	}
	for _, bad := range []string{"#12G456", "1a2b3c", "#fff", "#1a2b3c4d", ""} {
		if IsValidHexColor(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1a2B3c")
	if err != nil {
		t.Fatalf("ParseHexColor failed: %v", err)
	}
	if c != (color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}) {
		t.Fatalf("unexpected color %+v", c)
	}
	if _, err := ParseHexColor("1a2b3c"); err == nil {
		t.Fatalf("expected error for missing #")
	}
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.BandHeight != 60 || s.FontSize != 40 || s.FontColor != "#030303" || s.OutlineColor != "#ffffff" {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestValidateRejects(t *testing.T) {
	mutations := map[string]func(*Settings){
		"band":    func(s *Settings) { s.BandHeight = 0 },
		"font":    func(s *Settings) { s.FontSize = -1 },
		"color":   func(s *Settings) { s.FontColor = "#12G456" },
		"outline": func(s *Settings) { s.OutlineColor = "ffffff" },
		"weight":  func(s *Settings) { s.FontWeight = "450" },
	}
	for name, mutate := range mutations {
		s := Default()
		mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestScaledKeepsProportions(t *testing.T) {
	s := Default()
	s.BandHeight = 60
	s.FontSize = 30
	got := s.Scaled(1000.0 / 600.0)
	if got.BandHeight != 100 || got.FontSize != 50 {
		t.Fatalf("unexpected scaled settings %+v", got)
	}
	if s.BandHeight != 60 {
		t.Fatalf("Scaled must not modify the receiver")
	}
	if tiny := s.Scaled(0.001); tiny.BandHeight != 1 || tiny.FontSize != 1 {
		t.Fatalf("scaled values should be clamped to 1, got %+v", tiny)
	}
}

func TestSoftLimitCountsRunes(t *testing.T) {
	s := Default()
	s.Text = strings.Repeat("字", SoftCharLimit)
	if s.CharCount() != SoftCharLimit || s.OverSoftLimit() {
		t.Fatalf("exactly %d runes should not exceed the soft limit", SoftCharLimit)
	}
	s.Text += "!"
	if !s.OverSoftLimit() {
		t.Fatalf("expected soft limit warning")
	}
}

func TestApplyDocument(t *testing.T) {
	doc, err := dsl.ParseString(`caption demo {
  band-height: 72px
  font-size: 30pt
  font-color: #112233; outline-color: #ABCDEF
  font-family: "Go Mono"
  font-weight: bold
  text {
    "Line1"
    "Line2"
  }
}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, err := Apply(doc, Default())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := Settings{
		BandHeight:   72,
		FontSize:     40,
		FontColor:    "#112233",
		OutlineColor: "#ABCDEF",
		FontFamily:   "Go Mono",
		FontWeight:   "700",
		Text:         "Line1\nLine2",
	}
	if got != want {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}
}

func TestApplyKeepsBaseOnError(t *testing.T) {
	base := Default()
	base.Text = "keep"
	for _, src := range []string{
		"caption { font-color: #12G456 }",
		"caption { shadow: 3 }",
		"caption { band-height: 0 }",
		"caption { text: bold }",
	} {
		doc, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("parse %q failed: %v", src, err)
		}
		got, err := Apply(doc, base)
		if err == nil {
			t.Fatalf("expected error for %q", src)
		}
		if got != base {
			t.Fatalf("base must be returned unchanged for %q", src)
		}
	}
}

func TestApplyExampleFile(t *testing.T) {
	f, err := os.Open("../examples/demo.caption")
	if err != nil {
		t.Fatalf("open example failed: %v", err)
	}
	defer f.Close()
	doc, err := dsl.Parse(f)
	if err != nil {
		t.Fatalf("parse example failed: %v", err)
	}
	got, err := Apply(doc, Default())
	if err != nil {
		t.Fatalf("apply example failed: %v", err)
	}
	if got.FontWeight != "700" || got.Text != "Episode ${episode}\nLine2" {
		t.Fatalf("unexpected settings %+v", got)
	}
	// 内置 Go 字体没有汉字字形。
	for _, r := range got.Text {
		if unicode.Is(unicode.Han, r) && got.FontFamily == "Go" {
			t.Fatalf("example uses Han characters with the Go font: %q", got.Text)
		}
	}
}
