package usecase

import (
	"strings"

	"github.com/nutricam/backend/internal/domain"
)

// BestSearchTerm picks the term to send to an English-language text
// provider from whatever identity metadata a product record carries:
// explicit English name, then generic English name, then English category
// tags (most specific first), then the generic name, then the raw name.
// The first non-empty candidate wins.
func BestSearchTerm(record *domain.ProductRecord) string {
	if record == nil {
		return ""
	}

	candidates := []string{record.NameEnglish, record.GenericNameEnglish}
	candidates = append(candidates, record.CategoriesEnglish...)
	candidates = append(candidates, record.GenericName, record.Identity.Name)

	for _, candidate := range candidates {
		if term := strings.TrimSpace(candidate); term != "" {
			return term
		}
	}
	return ""
}
