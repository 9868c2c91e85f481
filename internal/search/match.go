package search

import (
	"strings"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// Match сообщает, подходит ли услуга под запрос. Услуга подходит, если запрос целиком
// или хотя бы одно его слово входит в название услуги, её описание или название категории.
func Match(query string, s model.Service) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}

	fields := [3]string{
		strings.ToLower(s.ServiceTitle),
		strings.ToLower(s.Description),
		"",
	}
	if s.Category != nil {
		fields[2] = strings.ToLower(s.Category.CategoryTitle)
	}

	for _, f := range fields {
		if f != "" && strings.Contains(f, q) {
			return true
		}
	}

	for _, token := range strings.Fields(q) {
		for _, f := range fields {
			if f != "" && strings.Contains(f, token) {
				return true
			}
		}
	}
	return false
}

// Filter возвращает подходящие под запрос услуги, не более limit штук (0 означает без ограничения).
func Filter(query string, services []model.Service, limit int) []model.Service {
	res := make([]model.Service, 0)
	for _, s := range services {
		if !Match(query, s) {
			continue
		}
		res = append(res, s)
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	return res
}

// Normalize гарантирует, что у результата заполнены CategoryID и вложенная категория.
func Normalize(s model.Service) model.Service {
	if s.CategoryID == 0 && s.Category != nil {
		s.CategoryID = s.Category.ID
	}
	if s.Category == nil {
		s.Category = &model.Category{ID: s.CategoryID}
	} else {
		cat := *s.Category
		if cat.ID == 0 {
			cat.ID = s.CategoryID
		}
		s.Category = &cat
	}
	return s
}
