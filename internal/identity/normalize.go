// Package identity derives a stable identity key for a physical card variant
// from heterogeneous, partially-missing attributes.
//
// Normalize is total: any input, including an empty one, yields a Key. Inputs
// that carry neither a set/number pair nor a name fall into the "unknown"
// branch, whose fingerprint embeds the wall clock so it never collides with
// another key.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Finish is the printing finish of a card variant.
type Finish string

const (
	FinishFoil    Finish = "foil"
	FinishNonfoil Finish = "nonfoil"
	FinishEtched  Finish = "etched"
)

// DefaultLang is used whenever the language is missing or unrecognised.
const DefaultLang = "EN"

const unknownPrefix = "unknown:"

// Input carries the raw attributes observed on a scan, sale row or import row.
// Every field is optional. Foil, when set, takes precedence over Finish.
type Input struct {
	CardID  string
	SetCode string
	Number  string
	Lang    string
	Finish  string
	Foil    *bool
	Name    string
}

// Key is the canonical identity of a card variant.
type Key struct {
	CardID      string `json:"card_id,omitempty"`
	SetCode     string `json:"set_code,omitempty"`
	Number      string `json:"number,omitempty"`
	Lang        string `json:"lang"`
	Finish      Finish `json:"finish"`
	Name        string `json:"name,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// LotCardID is the card id lots of this identity are filed under: the
// upstream card id when known, the fingerprint otherwise.
func (k Key) LotCardID() string {
	if k.CardID != "" {
		return k.CardID
	}
	return k.Fingerprint
}

// IsUnknown reports whether the key came from the timestamp fallback branch.
func (k Key) IsUnknown() bool { return strings.HasPrefix(k.Fingerprint, unknownPrefix) }

// Normalizer computes keys. Now is the clock read by the unknown branch; nil
// means time.Now.
type Normalizer struct {
	Now func() time.Time
}

// Normalize computes the key of in using the wall clock.
func Normalize(in Input) Key { return Normalizer{}.Normalize(in) }

// Normalize computes the key of in.
func (n Normalizer) Normalize(in Input) Key {
	k := Key{
		CardID:  strings.TrimSpace(in.CardID),
		SetCode: strings.ToUpper(strings.TrimSpace(in.SetCode)),
		Number:  normalizeNumber(in.Number),
		Lang:    NormalizeLang(in.Lang),
		Finish:  NormalizeFinish(in.Finish, in.Foil),
		Name:    strings.TrimSpace(in.Name),
	}

	switch {
	case k.SetCode != "" && k.Number != "":
		k.Fingerprint = fmt.Sprintf("%s:%s:%s:%s", k.SetCode, k.Number, k.Lang, k.Finish)
	case Slugify(k.Name) != "":
		k.Fingerprint = fmt.Sprintf("name:%s:%s:%s", Slugify(k.Name), k.Lang, k.Finish)
	default:
		now := time.Now
		if n.Now != nil {
			now = n.Now
		}
		k.Fingerprint = fmt.Sprintf("%s%d:%s:%s", unknownPrefix, now().UnixNano(), k.Lang, k.Finish)
	}
	return k
}

// normalizeNumber trims the collector number and drops a "/total" suffix.
func normalizeNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// NormalizeFinish maps the boolean or free-text finish to the enum.
func NormalizeFinish(text string, foil *bool) Finish {
	if foil != nil {
		if *foil {
			return FinishFoil
		}
		return FinishNonfoil
	}
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(s, "etched"):
		return FinishEtched
	case s == "", s == "false", s == "normal", s == "regular",
		strings.Contains(s, "nonfoil"), strings.Contains(s, "non-foil"), strings.Contains(s, "non foil"):
		return FinishNonfoil
	case s == "true", strings.Contains(s, "foil"):
		return FinishFoil
	default:
		return FinishNonfoil
	}
}

// langAliases covers language names and the codes collector sites use that
// are not ISO 639-1. An alias must not shadow an assigned ISO code; "kr"
// (Kanuri) is the one exception, since no card is printed in Kanuri.
var langAliases = map[string]string{
	"english":             "EN",
	"german":              "DE",
	"deutsch":             "DE",
	"french":              "FR",
	"français":            "FR",
	"francais":            "FR",
	"italian":             "IT",
	"italiano":            "IT",
	"spanish":             "ES",
	"español":             "ES",
	"espanol":             "ES",
	"portuguese":          "PT",
	"português":           "PT",
	"portugues":           "PT",
	"japanese":            "JA",
	"jp":                  "JA",
	"korean":              "KO",
	"kr":                  "KO",
	"russian":             "RU",
	"chinese":             "ZH",
	"simplified chinese":  "ZH",
	"traditional chinese": "ZH",
	"zhs":                 "ZH",
	"zht":                 "ZH",
	"ct":                  "ZH",
	"phyrexian":           "PH",
	"ph":                  "PH",
}

// NormalizeLang returns an upper-cased two-letter language code.
func NormalizeLang(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DefaultLang
	}
	if code, ok := langAliases[s]; ok {
		return code
	}
	if tag, err := language.Parse(s); err == nil {
		if base, conf := tag.Base(); conf != language.No && len(base.String()) == 2 {
			return strings.ToUpper(base.String())
		}
	}
	return DefaultLang
}

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
	ligatureFolder = strings.NewReplacer("æ", "ae", "œ", "oe", "ß", "ss", "ø", "o", "'", "", "’", "")
)

// Slugify lower-cases name, strips accents and collapses everything that is
// not a letter or digit into single dashes.
func Slugify(name string) string {
	s := ligatureFolder.Replace(strings.ToLower(strings.TrimSpace(name)))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
