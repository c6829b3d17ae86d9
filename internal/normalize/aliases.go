package normalize

import (
	"sort"
	"strings"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// AliasTable maps normalized service-name substrings to categories. Loaded
// once, queried per candidate; replaces scattered string matching with one
// testable lookup.
type AliasTable struct {
	aliases map[string]model.Category
	keys    []string // longest first, so "google one" wins over "google"
}

// NewAliasTable builds a table from substring→category pairs.
func NewAliasTable(aliases map[string]model.Category) *AliasTable {
	keys := make([]string, 0, len(aliases))
	normalized := make(map[string]model.Category, len(aliases))
	for alias, category := range aliases {
		key := strings.ToLower(strings.TrimSpace(alias))
		normalized[key] = category
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &AliasTable{aliases: normalized, keys: keys}
}

// Lookup returns the category for a normalized service name, or
// CategoryOther when no alias matches.
func (t *AliasTable) Lookup(serviceName string) model.Category {
	name := strings.ToLower(serviceName)
	for _, key := range t.keys {
		if strings.Contains(name, key) {
			return t.aliases[key]
		}
	}
	return model.CategoryOther
}

// Len returns the number of loaded aliases.
func (t *AliasTable) Len() int {
	return len(t.keys)
}

// DefaultAliases returns the built-in vendor alias table.
func DefaultAliases() map[string]model.Category {
	return map[string]model.Category{
		"netflix":      model.CategoryStreaming,
		"prime video":  model.CategoryStreaming,
		"hotstar":      model.CategoryStreaming,
		"disney":       model.CategoryStreaming,
		"hulu":         model.CategoryStreaming,
		"sonyliv":      model.CategoryStreaming,
		"zee5":         model.CategoryStreaming,
		"youtube":      model.CategoryStreaming,
		"spotify":      model.CategoryMusic,
		"apple music":  model.CategoryMusic,
		"gaana":        model.CategoryMusic,
		"wynk":         model.CategoryMusic,
		"adobe":        model.CategorySoftware,
		"microsoft":    model.CategorySoftware,
		"office 365":   model.CategorySoftware,
		"jetbrains":    model.CategorySoftware,
		"github":       model.CategorySoftware,
		"notion":       model.CategorySoftware,
		"figma":        model.CategorySoftware,
		"canva":        model.CategorySoftware,
		"google one":   model.CategoryCloud,
		"icloud":       model.CategoryCloud,
		"dropbox":      model.CategoryCloud,
		"aws":          model.CategoryCloud,
		"digitalocean": model.CategoryCloud,
		"times prime":  model.CategoryNews,
		"economist":    model.CategoryNews,
		"nytimes":      model.CategoryNews,
		"medium":       model.CategoryNews,
		"substack":     model.CategoryNews,
		"playstation":  model.CategoryGaming,
		"xbox":         model.CategoryGaming,
		"steam":        model.CategoryGaming,
		"nintendo":     model.CategoryGaming,
		"cult fit":     model.CategoryFitness,
		"cultfit":      model.CategoryFitness,
		"fitbit":       model.CategoryFitness,
		"strava":       model.CategoryFitness,
		"coursera":     model.CategoryEducation,
		"udemy":        model.CategoryEducation,
		"skillshare":   model.CategoryEducation,
		"duolingo":     model.CategoryEducation,
		"zerodha":      model.CategoryInvestment,
		"groww":        model.CategoryInvestment,
		"smallcase":    model.CategoryInvestment,
		"jio":          model.CategoryUtilities,
		"airtel":       model.CategoryUtilities,
		"vodafone":     model.CategoryUtilities,
		"tata power":   model.CategoryUtilities,
		"swiggy one":   model.CategoryFoodDelivery,
		"zomato gold":  model.CategoryFoodDelivery,
		"amazon prime": model.CategoryShopping,
		"flipkart":     model.CategoryShopping,
		"slack":        model.CategoryCommunication,
		"zoom":         model.CategoryCommunication,
	}
}
