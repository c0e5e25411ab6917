// Package i18n loads the bundled gettext catalogues and picks a locale for
// user-facing text.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

const domain = "default"

//go:embed locales/*.po
var catalogues embed.FS

// Localizer translates a message id, formatting vars into it.
// *gotext.Locale satisfies it.
type Localizer interface {
	Get(str string, vars ...interface{}) string
}

// Catalog holds one gotext locale per bundled language.
type Catalog struct {
	locales  map[string]*gotext.Locale
	tags     []language.Tag
	matcher  language.Matcher
	fallback string
}

// Load parses the embedded catalogues. fallback must be one of them.
func Load(fallback string) (*Catalog, error) {
	entries, err := catalogues.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read catalogues: %w", err)
	}
	c := &Catalog{locales: make(map[string]*gotext.Locale), fallback: fallback}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".po"))
	}
	sort.Strings(names)
	// the fallback goes first so the matcher prefers it
	sort.SliceStable(names, func(i, j int) bool { return names[i] == fallback && names[j] != fallback })

	for _, lang := range names {
		data, err := catalogues.ReadFile("locales/" + lang + ".po")
		if err != nil {
			return nil, fmt.Errorf("read %s catalogue: %w", lang, err)
		}
		po := gotext.NewPo()
		po.Parse(data)
		l := gotext.NewLocale("", lang)
		l.AddTranslator(domain, po)
		c.locales[lang] = l
		c.tags = append(c.tags, language.Make(lang))
	}
	if _, ok := c.locales[fallback]; !ok {
		return nil, fmt.Errorf("no catalogue for fallback language %q", fallback)
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// MustLoad is Load for package initialisation; it panics on error.
func MustLoad(fallback string) *Catalog {
	c, err := Load(fallback)
	if err != nil {
		panic(err)
	}
	return c
}

// Languages returns the bundled language codes.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.locales))
	for lang := range c.locales {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Locale returns the locale for lang, or the fallback.
func (c *Catalog) Locale(lang string) Localizer {
	if l, ok := c.locales[c.Match(lang)]; ok {
		return l
	}
	return c.locales[c.fallback]
}

// Match picks the best bundled language for an Accept-Language header or a
// bare language code.
func (c *Catalog) Match(accept string) string {
	if accept == "" {
		return c.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.fallback
	}
	base, _ := c.tags[idx].Base()
	return base.String()
}

// SortPlayers orders players by name using the collation rules of lang.
func SortPlayers(lang string, players []model.Player) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	col := collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(players, func(i, j int) bool {
		return col.CompareString(players[i].Name, players[j].Name) < 0
	})
}

// JoinNames joins names with commas and a localized "and" before the last.
func JoinNames(loc Localizer, names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " " + loc.Get("and") + " " + names[len(names)-1]
}
