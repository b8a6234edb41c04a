package searchindex

// Category tags what kind of documentation fragment a record indexes
type Category string

const (
	CategorySection Category = "section"
	CategoryPage    Category = "page"
	CategoryType    Category = "type"
	CategoryMethod  Category = "method"
)

// Categories lists the categories emitted by the documentation generator
var Categories = []Category{CategorySection, CategoryPage, CategoryType, CategoryMethod}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategorySection, CategoryPage, CategoryType, CategoryMethod:
		return true
	}
	return false
}

// Record is one indexed documentation fragment
type Record struct {
	Location string   `json:"location"` // page/#anchor on the rendered site
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// LoadStats describes what the loader had to tolerate
type LoadStats struct {
	Records           int `json:"records"`
	MissingFields     int `json:"missing_fields"`     // absent fields replaced by ""
	UnknownCategories int `json:"unknown_categories"` // categories outside Categories
}
