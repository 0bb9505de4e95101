package discovery

import (
	"math/rand/v2"

	"github.com/geekdaily/escape-the-algo/internal/models"
)

// SelectFrom drops every candidate whose ID is in excluded and picks one of
// the remainder uniformly at random. The provider is asked to filter
// excluded IDs already; this re-check is defensive. Returns nil when no
// eligible candidate remains.
func SelectFrom(candidates []models.Video, excluded map[string]struct{}) *models.Video {
	eligible := make([]models.Video, 0, len(candidates))
	for _, v := range candidates {
		if _, seen := excluded[v.ID]; seen {
			continue
		}
		eligible = append(eligible, v)
	}
	if len(eligible) == 0 {
		return nil
	}
	pick := eligible[rand.IntN(len(eligible))]
	return &pick
}
