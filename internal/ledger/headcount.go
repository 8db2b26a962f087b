package ledger

import (
	"strings"

	"github.com/hitoshi/lunchmate/internal/model"
)

// NormalizeName は照合用にレストラン名の前後の空白を除去し小文字化する。
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func containsNormalized(s, normalizedQuery string) bool {
	return strings.Contains(NormalizeName(s), normalizedQuery)
}

// Headcounts はレストランごとの当日の人数を返す。結果はrestaurantsと同じ順序。
// 検索結果とランチの店名をどちらも正規化して比較し、一致しない店は0人とする。
func Headcounts(restaurants []model.Restaurant, lunches []*model.Lunch) []int {
	byName := make(map[string]int, len(lunches))
	for _, lunch := range lunches {
		byName[NormalizeName(lunch.Restaurant.Name)]++
	}

	counts := make([]int, len(restaurants))
	for i, r := range restaurants {
		counts[i] = byName[NormalizeName(r.Name)]
	}
	return counts
}
