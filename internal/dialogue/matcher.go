package dialogue

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Mode selects how recognized text is split into blocks.
type Mode int

const (
	// SpaceDelimited splits text into per-speaker blocks.
	SpaceDelimited Mode = iota
	// Ideographic treats the whole text as one block.
	Ideographic
)

// ModeForLanguage maps a language code to its matching mode.
func ModeForLanguage(lang string) Mode {
	switch strings.ToLower(lang) {
	case "jp", "ja", "zh", "ko":
		return Ideographic
	default:
		return SpaceDelimited
	}
}

func (m Mode) threshold() float64 {
	if m == Ideographic {
		return 0.10
	}
	return 0.33
}

// SpeakerDelimiter marks a speaker token such as "Crew:".
const SpeakerDelimiter = ":"

// DefaultNoise lists on-screen menu text that is never dialogue.
var DefaultNoise = []string{"Contentless Cores Explore"}

// Matcher finds the script entries closest to recognized text.
type Matcher struct {
	noise []string
}

// NewMatcher creates a matcher. A nil noise list selects DefaultNoise.
func NewMatcher(noise []string) *Matcher {
	if noise == nil {
		noise = DefaultNoise
	}
	return &Matcher{noise: noise}
}

// Ratio is the indel similarity of a and b in [0,1]: twice the longest common
// subsequence over the combined rune length. Two empty strings score 1.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// Blocks splits text according to mode. In SpaceDelimited mode every token
// containing SpeakerDelimiter opens a new block.
func Blocks(text string, mode Mode) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if mode == Ideographic {
		return []string{text}
	}

	var blocks []string
	var cur []string
	for _, tok := range strings.Fields(text) {
		if strings.Contains(tok, SpeakerDelimiter) && len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, " "))
			cur = nil
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		blocks = append(blocks, strings.Join(cur, " "))
	}
	return blocks
}

// FindClosest returns the ids of the entries matched by each block of text, in
// block order. Consecutive repeats collapse to one id so that a single line
// spread across several speaker blocks is reported once.
func (m *Matcher) FindClosest(text string, script *Script, mode Mode) []int {
	ids := []int{}
	if script == nil || script.Len() == 0 {
		return ids
	}
	for _, block := range Blocks(text, mode) {
		if m.isNoise(block) {
			slog.Debug("skipping non-dialogue block", "block", block)
			continue
		}
		id, ratio, ok := closest(block, script, mode.threshold())
		if !ok {
			continue
		}
		slog.Debug("dialogue match", "id", id, "ratio", ratio, "block", block)
		if len(ids) > 0 && ids[len(ids)-1] == id {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *Matcher) isNoise(block string) bool {
	for _, n := range m.noise {
		if n != "" && strings.Contains(block, n) {
			return true
		}
	}
	return false
}

// closest scans every entry; the first entry with the strictly highest ratio
// above threshold wins.
func closest(block string, script *Script, threshold float64) (int, float64, bool) {
	best, bestRatio := -1, threshold
	for _, e := range script.entries {
		if r := Ratio(block, e.Text); r > bestRatio {
			best, bestRatio = e.ID, r
		}
	}
	return best, bestRatio, best >= 0
}
