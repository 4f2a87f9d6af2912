package dictionary

// PrettyCategories is the closed set of category labels a categorized line
// item is allowed to carry on return (§6/Glossary). Anything else must be
// reported empty rather than invented.
var PrettyCategories = []string{
	"General Costs",
	"Site Costs",
	"Civil Works",
	"Earth Movement",
	"Roads",
	"OEM Building",
	"Electrical Works",
	"Solar Cables",
	"LV Cables",
	"MV Cables",
	"Trenching",
	"PV Mod. Installation",
	"Cleaning and Cabling of PV Mod.",
	"Tracker Inst.",
	"Other",
}

var prettyCategorySet = func() map[string]bool {
	set := make(map[string]bool, len(PrettyCategories))
	for _, c := range PrettyCategories {
		set[c] = true
	}
	return set
}()

// IsPrettyCategory reports whether name belongs to the closed label set.
// An empty string is a valid "unresolved" value, not a pretty category.
func IsPrettyCategory(name string) bool {
	return prettyCategorySet[name]
}
