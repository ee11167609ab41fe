package registry

import "strings"

// ModelSpec lists the colors and variants a bike model is sold in.
type ModelSpec struct {
	Name     string   `json:"name"`
	Colors   []string `json:"colors"`
	Variants []string `json:"variants,omitempty"`
}

// Catalog is what the registration form offers.
type Catalog struct {
	States []string    `json:"states"`
	Titles []string    `json:"titles"`
	Usages []string    `json:"usages"`
	Models []ModelSpec `json:"models"`
}

var kickSelfVariants = []string{"Spoke - Kick Start", "Alloy - Kick Start", "Alloy - Self Start"}

var defaultCatalog = Catalog{
	States: []string{
		"Abia", "Adamawa", "Akwa Ibom", "Anambra", "Bauchi", "Bayelsa", "Benue",
		"Borno", "Cross River", "Delta", "Ebonyi", "Edo", "Ekiti", "Enugu", "FCT",
		"Gombe", "Imo", "Jigawa", "Kaduna", "Kano", "Katsina", "Kebbi", "Kogi",
		"Kwara", "Lagos", "Nasarawa", "Niger", "Ogun", "Ondo", "Osun", "Oyo",
		"Plateau", "Rivers", "Sokoto", "Taraba", "Yobe", "Zamfara",
	},
	Titles: []string{"Mr", "Mrs", "Miss", "Dr"},
	Usages: []string{"Private", "Commercial - Okada"},
	Models: []ModelSpec{
		{Name: "Ace 110", Colors: []string{"Blue", "Red"}, Variants: kickSelfVariants},
		{Name: "Ace 125", Colors: []string{"Blue", "Red"}, Variants: kickSelfVariants},
		{Name: "Ace 150", Colors: []string{"Black", "Red"}, Variants: []string{"Alloy"}},
		{Name: "CGL 125", Colors: []string{"Blue", "Red"}},
		{Name: "CB Unicorn", Colors: []string{"Black", "Grey", "Red", "White"}, Variants: []string{"Alloy"}},
		{Name: "Dream", Colors: []string{"Grey", "Red"}},
		{Name: "Wave 110", Colors: []string{"Black", "Blue"}, Variants: []string{"Alloy"}},
	},
}

// DefaultCatalog returns the bike models and form options.
func DefaultCatalog() Catalog {
	return defaultCatalog
}

// LookupModel finds a model by exact name.
func LookupModel(name string) (ModelSpec, bool) {
	for _, m := range defaultCatalog.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// SplitVariant splits "Alloy - Self Start" into rim and start type. A
// variant without a separator is a rim type only.
func SplitVariant(variant string) (rimType, startType string) {
	rim, start, _ := strings.Cut(variant, " - ")
	return strings.TrimSpace(rim), strings.TrimSpace(start)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
