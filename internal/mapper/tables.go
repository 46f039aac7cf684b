package mapper

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"realty-feed-sync/internal/models"
)

// Tables maps raw feed tokens onto canonical taxonomy slugs. Keys are
// normalized with normalizeKey when the tables are built, so lookups are
// case-insensitive for Latin and Cyrillic tokens alike.
type Tables struct {
	categories map[string]string
	cities     map[string]string
	regions    map[string]string
}

// NewTables builds lookup tables from raw maps. The input maps are copied.
func NewTables(categories, cities, regions map[string]string) Tables {
	return Tables{
		categories: normalized(categories),
		cities:     normalized(cities),
		regions:    normalized(regions),
	}
}

// WithOverrides returns a copy of t with extra entries layered on top.
func (t Tables) WithOverrides(categories, cities, regions map[string]string) Tables {
	return Tables{
		categories: merged(t.categories, categories),
		cities:     merged(t.cities, cities),
		regions:    merged(t.regions, regions),
	}
}

// Category looks up a composite "<offer>_<property>" key.
func (t Tables) Category(key string) (string, bool) {
	slug, ok := t.categories[normalizeKey(key)]
	return slug, ok
}

// City looks up a raw city token.
func (t Tables) City(token string) (string, bool) {
	slug, ok := t.cities[normalizeKey(token)]
	return slug, ok
}

// Region looks up a raw region token.
func (t Tables) Region(token string) (string, bool) {
	slug, ok := t.regions[normalizeKey(token)]
	return slug, ok
}

// Terms returns one term per distinct slug the tables can resolve to, sorted
// by taxonomy and slug. names supplies display names; a slug without one is
// named after itself.
func (t Tables) Terms(names map[string]string) []models.Term {
	var terms []models.Term
	add := func(taxonomy string, slugs []string) {
		slugs = lo.Uniq(slugs)
		sort.Strings(slugs)
		for _, slug := range slugs {
			name := names[slug]
			if name == "" {
				name = slug
			}
			terms = append(terms, models.Term{Taxonomy: taxonomy, Slug: slug, Name: name})
		}
	}
	add(models.TaxonomyCategory, lo.Values(t.categories))
	add(models.TaxonomyCity, append(lo.Values(t.cities), lo.Values(t.regions)...))
	return terms
}

// TablesFor returns the built-in tables of a feed source.
func TablesFor(name string) (Tables, bool) {
	switch name {
	case "aspo":
		return AspoTables(), true
	case "flatprime":
		return FlatprimeTables(), true
	}
	return Tables{}, false
}

// AspoTables covers the transliterated tokens of the ASPO feed.
func AspoTables() Tables {
	return NewTables(baseCategories, baseCities, baseRegions)
}

// FlatprimeTables adds the Russian and Ukrainian forms used by the
// Flatprime CRM export.
func FlatprimeTables() Tables {
	return AspoTables().WithOverrides(flatprimeCategories, nil, flatprimeRegions)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalized(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[normalizeKey(k)] = v
	}
	return out
}

func merged(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[normalizeKey(k)] = v
	}
	return out
}

var baseCategories = map[string]string{
	"long-term-lease_homes":      "house-rental",
	"rent_homes":                 "house-rental",
	"long-term-lease_apartments": "apartment-rental",
	"rent_apartments":            "apartment-rental",
	"sell_homes":                 "house-for-sale",
	"sell_apartments":            "apartment-for-sale",

	"sell_land":            "land-for-sale",
	"long-term-lease_land": "land-rental",
	"rent_land":            "land-rental",

	"sell_office":          "commercial-property-for-sale",
	"sell_industry":        "commercial-property-for-sale",
	"sell_garages-parking": "commercial-property-for-sale",

	"rent_office":                     "commercial-property-rental",
	"long-term-lease_office":          "commercial-property-rental",
	"long-term-lease_industry":        "commercial-property-rental",
	"long-term-lease_garages-parking": "commercial-property-rental",
}

var flatprimeCategories = map[string]string{
	"аренда_дом":          "house-rental",
	"аренда_квартира":     "apartment-rental",
	"продажа_дом":         "house-for-sale",
	"продажа_квартира":    "apartment-for-sale",
	"продажа_участок":     "land-for-sale",
	"аренда_участок":      "land-rental",
	"продажа_офис":        "commercial-property-for-sale",
	"аренда_офис":         "commercial-property-rental",
	"аренда_коммерческая": "commercial-property-rental",
}

var baseRegions = map[string]string{
	"kievskaya":          "kyiv-region",
	"odesskaya":          "odesa-region",
	"dnepropetrovskaya":  "dnipropetrovsk-region",
	"doneckaya":          "donetsk-region",
	"zhytomyrskaya":      "zhytomyr-region",
	"zhitomirskaya":      "zhytomyr-region",
	"lvovskaya":          "lviv-region",
	"volynskaya":         "volyn-region",
	"zaporozhskaya":      "zaporizhzhia-region",
	"kirovogradskaya":    "kirovohrad-region",
	"xarkovskaya":        "kharkiv-region",
	"vinnickaya":         "vinnytsia-region",
	"ivano-frankovskaya": "ivano-frankivsk-region",
	"rovenskaya":         "rivne-region",
	"chernigovskaya":     "chernihiv-region",
	"nikolaevskaya":      "mykolaiv-region",
	"poltavskaya":        "poltava-region",
	"zakarpatskaya":      "zakarpattia-region",
	"sumskaya":           "sumy-region",
	"ternopolskaya":      "ternopil-region",
	"cherkasskaya":       "cherkasy-region",
	"chernovickaya":      "chernivtsi-region",
	"luganskaya":         "lugansk-region",
	"xersonskaya":        "kherson-region",
	"xmelnickaya":        "khmelnytskyi-region",
}

var flatprimeRegions = map[string]string{
	"Киевская":                  "kyiv-region",
	"Киевская область":          "kyiv-region",
	"Київська область":          "kyiv-region",
	"Одесская":                  "odesa-region",
	"Одесская область":          "odesa-region",
	"Днепропетровская":          "dnipropetrovsk-region",
	"Днепропетровская область":  "dnipropetrovsk-region",
	"Донецкая":                  "donetsk-region",
	"Донецкая область":          "donetsk-region",
	"Житомирская":               "zhytomyr-region",
	"Житомирская область":       "zhytomyr-region",
	"Львовская":                 "lviv-region",
	"Львовская область":         "lviv-region",
	"Волынская":                 "volyn-region",
	"Волынская область":         "volyn-region",
	"Запорожская":               "zaporizhzhia-region",
	"Запорожская область":       "zaporizhzhia-region",
	"Кировоградская":            "kirovohrad-region",
	"Кировоградская область":    "kirovohrad-region",
	"Харьковская":               "kharkiv-region",
	"Харьковская область":       "kharkiv-region",
	"Винницкая":                 "vinnytsia-region",
	"Винницкая область":         "vinnytsia-region",
	"Ивано-Франковская":         "ivano-frankivsk-region",
	"Ивано-Франковская область": "ivano-frankivsk-region",
	"Ровенская":                 "rivne-region",
	"Ровенская область":         "rivne-region",
	"Черниговская":              "chernihiv-region",
	"Черниговская область":      "chernihiv-region",
	"Николаевская":              "mykolaiv-region",
	"Николаевская область":      "mykolaiv-region",
	"Полтавская":                "poltava-region",
	"Полтавская область":        "poltava-region",
	"Закарпатская":              "zakarpattia-region",
	"Закарпатская область":      "zakarpattia-region",
	"Сумская":                   "sumy-region",
	"Сумская область":           "sumy-region",
	"Тернопольская":             "ternopil-region",
	"Тернопольская область":     "ternopil-region",
	"Черкасская":                "cherkasy-region",
	"Черкасская область":        "cherkasy-region",
	"Черновицкая":               "chernivtsi-region",
	"Черновицкая область":       "chernivtsi-region",
	"Луганская":                 "lugansk-region",
	"Луганская область":         "lugansk-region",
	"Херсонская":                "kherson-region",
	"Херсонская область":        "kherson-region",
	"Хмельницкая":               "khmelnytskyi-region",
	"Хмельницкая область":       "khmelnytskyi-region",
}

var baseCities = map[string]string{
	"vinnica":                       "vinnytsia",
	"dnepropetrovsk":                "dnipro",
	"zhitomir":                      "zhytomyr",
	"zaporozhe":                     "zaporizhzhia",
	"ivano-frankivsk":               "ivano-frankivsk",
	"ivano-frankovsk":               "ivano-frankivsk",
	"frankivsk":                     "ivano-frankivsk",
	"frankovsk":                     "ivano-frankivsk",
	"Київ":                          "kyiv",
	"Киев":                          "kyiv",
	"kiev":                          "kyiv",
	"sofievskaya-borshhagovka":      "kyiv",
	"petropavlovskaya-borshhagovka": "kyiv",
	"kirovograd":                    "kropyvnytskyi",
	"luck":                          "lutsk",
	"lvov":                          "lviv",
	"nikolaev":                      "mykolaiv",
	"mykolaiv":                      "mykolaiv",
	"odessa":                        "odesa",
	"poltava":                       "poltava",
	"rovno":                         "rivne",
	"rivne":                         "rivne",
	"sumy":                          "sumy",
	"sumi":                          "sumy",
	"ternopil":                      "ternopil",
	"ternopol":                      "ternopil",
	"uzhhorod":                      "uzhhorod",
	"ujhorod":                       "uzhhorod",
	"ujgorod":                       "uzhhorod",
	"uzhпorod":                      "uzhhorod",
	"xarkov":                        "kharkiv",
	"kherson":                       "kherson",
	"xerson":                        "kherson",
	"herson":                        "kherson",
	"xmelnick":                      "khmelnytskyi",
	"khmelnytskyi":                  "khmelnytskyi",
	"cherkassy":                     "cherkasy",
	"cherkassі":                     "cherkasy",
	"chernovtsy":                    "chernivtsi",
	"chernovсy":                     "chernivtsi",
	"chernivtsi":                    "chernivtsi",
	"chernigov":                     "chernihiv",
}
