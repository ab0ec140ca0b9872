package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/storage"
)

// exportVersion tags the export document format.
const exportVersion = 1

type exportDoc struct {
	Version     int               `json:"version"`
	ExportedAt  int64             `json:"exported_at"`
	Profile     exportProfile     `json:"profile"`
	Discoveries []exportDiscovery `json:"discoveries"`
	Placements  []exportPlacement `json:"placements"`
	Unlocks     []exportUnlock    `json:"unlocks"`
}

type exportProfile struct {
	PlayerID         string `json:"player_id"`
	Coins            string `json:"coins"`
	TimeCrystals     string `json:"time_crystals"`
	CurrentEra       string `json:"current_era"`
	LastReconciledAt int64  `json:"last_reconciled_at,omitempty"`
	Pro              bool   `json:"pro,omitempty"`
	FeeExempt        bool   `json:"fee_exempt,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

type exportDiscovery struct {
	ObjectID     string `json:"object_id"`
	DiscoveredAt int64  `json:"discovered_at"`
}

type exportPlacement struct {
	ID              string `json:"id"`
	ObjectID        string `json:"object_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	PlacedAt        int64  `json:"placed_at"`
	BuildCompleteAt int64  `json:"build_complete_at"`
	RetireAt        *int64 `json:"retire_at,omitempty"`
	Building        bool   `json:"building"`
	Operational     bool   `json:"operational"`
}

type exportUnlock struct {
	Era        string `json:"era"`
	UnlockedAt int64  `json:"unlocked_at"`
}

// Export reconciles the player and serializes everything they own into a
// canonical JSON document. Timestamps are UTC milliseconds, balances are
// decimal strings.
func (s *Service) Export(ctx context.Context, playerID string) ([]byte, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.reconcile(ctx, playerID); err != nil {
		return nil, err
	}
	state, err := s.store.GetPlayerState(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load player state: %w", err)
	}

	doc := exportDoc{
		Version:    exportVersion,
		ExportedAt: s.now().UnixMilli(),
		Profile: exportProfile{
			PlayerID:     state.Profile.PlayerID,
			Coins:        state.Profile.Coins.String(),
			TimeCrystals: state.Profile.TimeCrystals.String(),
			CurrentEra:   state.Profile.CurrentEra,
			Pro:          state.Profile.Pro,
			FeeExempt:    state.Profile.FeeExempt,
			CreatedAt:    state.Profile.CreatedAt.UnixMilli(),
			UpdatedAt:    state.Profile.UpdatedAt.UnixMilli(),
		},
	}
	if !state.Profile.LastReconciledAt.IsZero() {
		doc.Profile.LastReconciledAt = state.Profile.LastReconciledAt.UnixMilli()
	}
	for _, discovery := range state.Discoveries {
		doc.Discoveries = append(doc.Discoveries, exportDiscovery{
			ObjectID:     discovery.ObjectID,
			DiscoveredAt: discovery.DiscoveredAt.UnixMilli(),
		})
	}
	for _, placed := range state.Placements {
		row := exportPlacement{
			ID:              placed.ID,
			ObjectID:        placed.ObjectID,
			X:               placed.X,
			Y:               placed.Y,
			PlacedAt:        placed.PlacedAt.UnixMilli(),
			BuildCompleteAt: placed.BuildCompleteAt.UnixMilli(),
			Building:        placed.Building,
			Operational:     placed.Operational,
		}
		if placed.RetireAt != nil {
			at := placed.RetireAt.UnixMilli()
			row.RetireAt = &at
		}
		doc.Placements = append(doc.Placements, row)
	}
	for _, unlock := range state.Unlocks {
		doc.Unlocks = append(doc.Unlocks, exportUnlock{
			Era:        unlock.Era,
			UnlockedAt: unlock.UnlockedAt.UnixMilli(),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import wipes the target player's rows and rebuilds them from an export
// document. Returns the imported player id.
func (s *Service) Import(ctx context.Context, data []byte) (string, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse export document: %w", err)
	}
	if doc.Version != exportVersion {
		return "", fmt.Errorf("unsupported export version %d", doc.Version)
	}
	playerID := strings.TrimSpace(doc.Profile.PlayerID)
	if playerID == "" {
		return "", errors.New("export document missing player id")
	}
	state, err := docToState(doc)
	if err != nil {
		return "", err
	}

	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.ReplacePlayerState(ctx, state); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", gameerr.New(gameerr.CodeNotFound, "export references unknown objects")
		}
		return "", fmt.Errorf("replace player state: %w", err)
	}
	s.logger.Printf("state imported player=%s placements=%d discoveries=%d", playerID, len(state.Placements), len(state.Discoveries))
	return playerID, nil
}

func docToState(doc exportDoc) (storage.PlayerState, error) {
	coins, err := decimal.NewFromString(doc.Profile.Coins)
	if err != nil {
		return storage.PlayerState{}, fmt.Errorf("parse coins: %w", err)
	}
	crystals, err := decimal.NewFromString(doc.Profile.TimeCrystals)
	if err != nil {
		return storage.PlayerState{}, fmt.Errorf("parse time crystals: %w", err)
	}

	state := storage.PlayerState{
		Profile: storage.PlayerProfile{
			PlayerID:     doc.Profile.PlayerID,
			Coins:        coins,
			TimeCrystals: crystals,
			CurrentEra:   doc.Profile.CurrentEra,
			Pro:          doc.Profile.Pro,
			FeeExempt:    doc.Profile.FeeExempt,
			CreatedAt:    fromMillis(doc.Profile.CreatedAt),
			UpdatedAt:    fromMillis(doc.Profile.UpdatedAt),
		},
	}
	if doc.Profile.LastReconciledAt != 0 {
		state.Profile.LastReconciledAt = fromMillis(doc.Profile.LastReconciledAt)
	}
	for _, discovery := range doc.Discoveries {
		state.Discoveries = append(state.Discoveries, storage.Discovery{
			PlayerID:     doc.Profile.PlayerID,
			ObjectID:     discovery.ObjectID,
			DiscoveredAt: fromMillis(discovery.DiscoveredAt),
		})
	}
	for _, placed := range doc.Placements {
		row := storage.PlacedObject{
			ID:              placed.ID,
			PlayerID:        doc.Profile.PlayerID,
			ObjectID:        placed.ObjectID,
			X:               placed.X,
			Y:               placed.Y,
			PlacedAt:        fromMillis(placed.PlacedAt),
			BuildCompleteAt: fromMillis(placed.BuildCompleteAt),
			Building:        placed.Building,
			Operational:     placed.Operational,
		}
		if placed.RetireAt != nil {
			at := fromMillis(*placed.RetireAt)
			row.RetireAt = &at
		}
		state.Placements = append(state.Placements, row)
	}
	for _, unlock := range doc.Unlocks {
		state.Unlocks = append(state.Unlocks, storage.EraUnlock{
			PlayerID:   doc.Profile.PlayerID,
			Era:        unlock.Era,
			UnlockedAt: fromMillis(unlock.UnlockedAt),
		})
	}
	return state, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
