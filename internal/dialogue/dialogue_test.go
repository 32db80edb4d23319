package dialogue

import (
	"strings"
	"testing"
)

const crewLine = "Crew: Why are we robbing crystals from innocent people? Crew: That's our duty."

func testScript() *Script {
	return NewScript([]Entry{
		{Speaker: "Bartz", Text: "Bartz: Huh?"},
		{Speaker: "Lenna", Text: "Lenna: Father..."},
		{Speaker: "Galuf", Text: "Galuf: Ugh..."},
		{Speaker: "Boko", Text: "Boko: Kweh!"},
		{Speaker: "Faris", Text: "Faris: Move it!"},
		{Speaker: "Cid", Text: "Cid: Hmm..."},
		{Speaker: "Mid", Text: "Mid: Grandpa!"},
		{Speaker: "Crew", Text: crewLine},
		{Speaker: "King", Text: "King: Go now."},
	})
}

func TestReadScriptAssignsIDsByPosition(t *testing.T) {
	sc, err := ReadScript(strings.NewReader(`[
		{"name": "Lenna", "dialogue": "Lenna: Father..."},
		{"name": "Bartz", "dialogue": "Bartz: Huh?"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Len() != 2 {
		t.Fatalf("Len = %d", sc.Len())
	}
	e, ok := sc.Get(1)
	if !ok || e.ID != 1 || e.Speaker != "Bartz" {
		t.Errorf("Get(1) = %+v, %v", e, ok)
	}
	if _, ok := sc.Get(2); ok {
		t.Error("Get(2) should miss")
	}
}

func TestReadScriptRejectsGarbage(t *testing.T) {
	if _, err := ReadScript(strings.NewReader("{")); err == nil {
		t.Error("expected error")
	}
}

func TestValidate(t *testing.T) {
	sc := NewScript([]Entry{
		{Speaker: "A", Text: "hello"},
		{Speaker: "", Text: "world"},
		{Speaker: "B", Text: "  "},
		{Speaker: "C", Text: "hello"},
	})
	problems := sc.Validate()
	if len(problems) != 3 {
		t.Fatalf("problems = %+v", problems)
	}
	if problems[2].ID != 3 || !strings.Contains(problems[2].Reason, "duplicate of 0") {
		t.Errorf("problem = %+v", problems[2])
	}
}

func TestRatio(t *testing.T) {
	if r := Ratio("Boko: Kweh!", "Boko: Kweh!"); r != 1 {
		t.Errorf("identical ratio = %v", r)
	}
	if r := Ratio("abc", "xyz"); r != 0 {
		t.Errorf("disjoint ratio = %v", r)
	}
	// thefuzz: ratio("abcd", "abce") = 75
	if r := Ratio("abcd", "abce"); r != 0.75 {
		t.Errorf("Ratio = %v, want 0.75", r)
	}
	if r := Ratio("", ""); r != 1 {
		t.Errorf("empty ratio = %v", r)
	}
}

func TestBlocks(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode Mode
		want []string
	}{
		{"empty", "  ", SpaceDelimited, nil},
		{"single speaker", "Crew: That's our duty.", SpaceDelimited, []string{"Crew: That's our duty."}},
		{"two speakers", "Crew: Why Crew: That's", SpaceDelimited, []string{"Crew: Why", "Crew: That's"}},
		{"leading text", "HP 200 Galuf: Ugh", SpaceDelimited, []string{"HP 200", "Galuf: Ugh"}},
		{"ideographic", "ファリス：海賊だ！ バッツ：何？", Ideographic, []string{"ファリス：海賊だ！ バッツ：何？"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blocks(tt.text, tt.mode)
			if len(got) != len(tt.want) {
				t.Fatalf("Blocks = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("block %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindClosestExactBlock(t *testing.T) {
	m := NewMatcher(nil)
	sc := testScript()
	for _, id := range []int{0, 3, 4, 8} {
		e, _ := sc.Get(id)
		if r := Ratio(e.Text, e.Text); r != 1 {
			t.Errorf("Ratio(%q) = %v", e.Text, r)
		}
		got := m.FindClosest(e.Text, sc, SpaceDelimited)
		if len(got) != 1 || got[0] != id {
			t.Errorf("FindClosest(%q) = %v, want [%d]", e.Text, got, id)
		}
	}
}

func TestFindClosestNoisyCrewLine(t *testing.T) {
	m := NewMatcher(nil)
	ocr := "Crew: Why ore We robbing crystols from innocent People? Crew: Thot' s our duty."
	if got := m.FindClosest(ocr, testScript(), SpaceDelimited); len(got) != 1 || got[0] != 7 {
		t.Errorf("FindClosest = %v, want [7]", got)
	}
}

func TestFindClosestBelowThreshold(t *testing.T) {
	m := NewMatcher(nil)
	if got := m.FindClosest("zzzzqqqq", testScript(), SpaceDelimited); len(got) != 0 {
		t.Errorf("FindClosest = %v, want empty", got)
	}
	if got := m.FindClosest("anything", NewScript(nil), SpaceDelimited); got == nil || len(got) != 0 {
		t.Errorf("empty script = %v, want empty non-nil", got)
	}
}

func TestFindClosestSkipsNoise(t *testing.T) {
	m := NewMatcher(nil)
	text := "Contentless Cores Explore Boko: Kweh!"
	got := m.FindClosest(text, testScript(), SpaceDelimited)
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("FindClosest = %v, want [3]", got)
	}
}

func TestFindClosestIdeographicThreshold(t *testing.T) {
	sc := NewScript([]Entry{
		{Speaker: "ファリス", Text: "ファリス：おまえたち、なにものだ？"},
		{Speaker: "バッツ", Text: "バッツ：おれはバッツ。"},
	})
	m := NewMatcher(nil)
	// Heavily garbled recognition still clears the lower ideographic threshold.
	got := m.FindClosest("フアリヌ：お前たち", sc, Ideographic)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("FindClosest = %v, want [0]", got)
	}
	if ModeForLanguage("jp") != Ideographic || ModeForLanguage("en") != SpaceDelimited {
		t.Error("unexpected language modes")
	}
}
