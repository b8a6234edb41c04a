package tools

// DataProvider gives access to data files bundled with the server.
// Tests swap in an in-memory provider instead of the embedded files.
type DataProvider interface {
	// ReadFile reads the named file, relative to the data root
	// (e.g., "data/search_index.js").
	ReadFile(name string) ([]byte, error)
}

// WithDataProvider replaces the source of bundled data files
func (d *DocSearch) WithDataProvider(provider DataProvider) *DocSearch {
	d.data = provider
	return d
}
