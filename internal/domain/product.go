package domain

// Product — товар каталога.
type Product struct {
	ID          int64
	Name        string
	Description string
	SKU         string
}

// MatchesSearch проверяет вхождение search в название или SKU без учёта регистра.
func (p Product) MatchesSearch(search string) bool {
	return containsFold(p.Name, search) || containsFold(p.SKU, search)
}

// ProductLess задаёт порядок выдачи: название, SKU, затем ID.
func ProductLess(a, b Product) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.SKU != b.SKU {
		return a.SKU < b.SKU
	}
	return a.ID < b.ID
}
