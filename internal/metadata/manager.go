package metadata

import (
	"fmt"
	"log"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/google/uuid"
)

// RefreshResult reports what a metadata refresh changed.
type RefreshResult struct {
	ItemID        uuid.UUID `json:"item_id"`
	Provider      string    `json:"provider,omitempty"`
	Matched       bool      `json:"matched"`
	UpdatedFields []string  `json:"updated_fields,omitempty"`
	EpisodesSeen  int       `json:"episodes_seen,omitempty"`
}

// Manager orchestrates provider lookups, merge and persistence.
type Manager struct {
	providers   []Provider
	itemRepo    *repository.ItemRepository
	episodeRepo *repository.EpisodeRepository
}

func NewManager(providers []Provider, itemRepo *repository.ItemRepository,
	episodeRepo *repository.EpisodeRepository) *Manager {
	return &Manager{
		providers:   providers,
		itemRepo:    itemRepo,
		episodeRepo: episodeRepo,
	}
}

// RefreshItem matches the item against providers (reusing a stored provider
// id when present), merges the result honoring field locks, and for series
// records the expected episode list.
func (m *Manager) RefreshItem(itemID uuid.UUID) (*RefreshResult, error) {
	item, err := m.itemRepo.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	if !KindSearchable(item.Kind) {
		return nil, fmt.Errorf("metadata refresh not supported for %s items", item.Kind)
	}

	result := &RefreshResult{ItemID: itemID}

	storedIDs, err := m.itemRepo.GetProviderIDs(itemID)
	if err != nil {
		return nil, err
	}

	for _, provider := range m.providers {
		externalID := m.storedIDFor(storedIDs, provider.Name())
		if externalID == "" {
			externalID, err = m.match(provider, item)
			if err != nil {
				log.Printf("Metadata: %s match failed for %q: %v", provider.Name(), item.Title, err)
				continue
			}
			if externalID == "" {
				continue
			}
			if err := m.itemRepo.SetProviderID(itemID, provider.Name(), externalID); err != nil {
				return nil, err
			}
		}

		if err := m.apply(provider, item, externalID, result); err != nil {
			log.Printf("Metadata: %s fetch failed for %q: %v", provider.Name(), item.Title, err)
			continue
		}

		result.Matched = true
		result.Provider = provider.Name()
		break
	}

	return result, nil
}

func (m *Manager) storedIDFor(ids []*models.ProviderID, provider string) string {
	for _, id := range ids {
		if id.Provider == provider {
			return id.Value
		}
	}
	return ""
}

func (m *Manager) match(provider Provider, item *models.Item) (string, error) {
	var results []SearchResult
	var err error
	if item.Kind == models.ItemSeries {
		results, err = provider.SearchSeries(item.Title, item.Year)
	} else {
		results, err = provider.SearchMovie(item.Title, item.Year)
	}
	if err != nil {
		return "", err
	}
	best := BestMatch(results, item.Year)
	if best == nil {
		return "", nil
	}
	return best.ExternalID, nil
}

func (m *Manager) apply(provider Provider, item *models.Item, externalID string, result *RefreshResult) error {
	var meta *ItemMetadata
	var err error
	if item.Kind == models.ItemSeries {
		meta, err = provider.GetSeries(externalID)
	} else {
		meta, err = provider.GetMovie(externalID)
	}
	if err != nil {
		return err
	}

	locked, err := m.itemRepo.GetLockedFields(item.ID)
	if err != nil {
		return err
	}

	result.UpdatedFields = Merge(item, meta, locked)
	if len(result.UpdatedFields) > 0 {
		if err := m.itemRepo.UpdateMetadata(item); err != nil {
			return err
		}
	}

	if item.Kind == models.ItemSeries {
		episodes, err := provider.GetSeasonEpisodes(externalID)
		if err != nil {
			return err
		}
		for _, ep := range episodes {
			expected := &models.ExpectedEpisode{
				SeriesID:      item.ID,
				SeasonNumber:  ep.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
				Title:         ep.Title,
				Overview:      ep.Overview,
				AirDate:       ep.AirDate,
			}
			if err := m.episodeRepo.UpsertExpected(expected); err != nil {
				return err
			}
		}
		result.EpisodesSeen = len(episodes)
	}

	return nil
}
