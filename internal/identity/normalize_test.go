package identity_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeSetNumberStripsDenominator(t *testing.T) {
	k := identity.Normalize(identity.Input{SetCode: "DOM", Number: "123/360", Lang: "EN", Finish: "nonfoil"})
	assert.Equal(t, "DOM:123:EN:nonfoil", k.Fingerprint)
	assert.Equal(t, "123", k.Number)
}

func TestNormalizeLanguageNameAndBooleanFoil(t *testing.T) {
	k := identity.Normalize(identity.Input{SetCode: "DOM", Number: "123", Lang: "english", Foil: boolPtr(true)})
	assert.Equal(t, "DOM:123:EN:foil", k.Fingerprint)
	assert.Equal(t, identity.FinishFoil, k.Finish)
}

func TestNormalizeNameBranch(t *testing.T) {
	k := identity.Normalize(identity.Input{Name: "Lightning Bolt", Lang: "EN", Finish: "foil"})
	assert.Equal(t, "name:lightning-bolt:EN:foil", k.Fingerprint)
}

func TestNormalizeSetCodeWinsOverName(t *testing.T) {
	k := identity.Normalize(identity.Input{SetCode: "dom", Number: " 7 ", Name: "Lightning Bolt"})
	assert.Equal(t, "DOM:7:EN:nonfoil", k.Fingerprint)
}

func TestNormalizeUnknownBranchUsesClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := identity.Normalizer{Now: func() time.Time { return at }}

	k := n.Normalize(identity.Input{Lang: "de", Foil: boolPtr(false)})
	assert.True(t, k.IsUnknown())
	assert.Equal(t, "unknown:1709294400000000000:DE:nonfoil", k.Fingerprint)
	assert.Equal(t, k.Fingerprint, k.LotCardID())
}

func TestNormalizeUnknownKeysDoNotCollide(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := identity.Normalizer{Now: func() time.Time {
		tick = tick.Add(time.Nanosecond)
		return tick
	}}
	a := n.Normalize(identity.Input{})
	b := n.Normalize(identity.Input{})
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestNormalizeIsPure(t *testing.T) {
	in := identity.Input{CardID: "abc", SetCode: "m21", Number: "001/274", Lang: "Deutsch", Finish: "Etched Foil"}
	first := identity.Normalize(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, identity.Normalize(in))
	}
	assert.Equal(t, "M21:001:DE:etched", first.Fingerprint)
	assert.Equal(t, "abc", first.LotCardID())
}

func TestNormalizeFinish(t *testing.T) {
	cases := map[string]identity.Finish{
		"":            identity.FinishNonfoil,
		"nonfoil":     identity.FinishNonfoil,
		"Non-Foil":    identity.FinishNonfoil,
		"normal":      identity.FinishNonfoil,
		"false":       identity.FinishNonfoil,
		"foil":        identity.FinishFoil,
		"true":        identity.FinishFoil,
		"Foil Etched": identity.FinishEtched,
		"etched":      identity.FinishEtched,
		"something":   identity.FinishNonfoil,
	}
	for in, want := range cases {
		assert.Equal(t, want, identity.NormalizeFinish(in, nil), "finish %q", in)
	}
	assert.Equal(t, identity.FinishNonfoil, identity.NormalizeFinish("foil", boolPtr(false)))
}

func TestNormalizeLang(t *testing.T) {
	cases := map[string]string{
		"":         "EN",
		"en":       "EN",
		"EN":       "EN",
		"de-DE":    "DE",
		"French":   "FR",
		"jp":       "JA",
		"zhs":      "ZH",
		"ct":       "ZH",
		"kr":       "KO",
		"cs":       "CS", // Czech, not simplified Chinese
		"klingon!": "EN",
	}
	for in, want := range cases {
		assert.Equal(t, want, identity.NormalizeLang(in), "lang %q", in)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "jotun-grunt", identity.Slugify("Jötun Grunt"))
	assert.Equal(t, "aether-vial", identity.Slugify("Æther Vial"))
	assert.Equal(t, "fire-ice", identity.Slugify("Fire // Ice"))
	assert.Equal(t, "", identity.Slugify("  --  "))
	assert.False(t, strings.Contains(identity.Slugify("Urza's Saga"), "'"))
}
