package domain

import "strings"

// Customer — клиент; Email уникален среди всех клиентов.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// MatchesSearch проверяет вхождение search в имя или фамилию без учёта регистра.
// Пустая строка поиска совпадает с любым клиентом.
func (c Customer) MatchesSearch(search string) bool {
	return containsFold(c.FirstName, search) || containsFold(c.LastName, search)
}

// CustomerLess задаёт порядок выдачи: имя, фамилия, затем ID для стабильности.
func CustomerLess(a, b Customer) bool {
	if a.FirstName != b.FirstName {
		return a.FirstName < b.FirstName
	}
	if a.LastName != b.LastName {
		return a.LastName < b.LastName
	}
	return a.ID < b.ID
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
