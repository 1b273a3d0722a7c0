package store

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"commandr-server/internal/model"
)

// AssetsOf lists the account's assets in upload order.
func (s *Store) AssetsOf(accountID string) []model.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Asset, 0)
	for _, a := range s.assets {
		if a.AccountID == accountID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}

// AddAsset stores a new asset owned by acc. Assets with the same name
// accumulate; replacing one is the caller's job via RemoveAsset.
func (s *Store) AddAsset(acc *Account, asset model.Asset) (model.Asset, error) {
	if acc == nil {
		return model.Asset{}, errors.Wrap(model.ErrInvalidArgument, "missing account")
	}
	asset.Name = strings.TrimSpace(asset.Name)
	if asset.Name == "" {
		return model.Asset{}, errors.Wrap(model.ErrInvalidArgument, "missing asset name")
	}
	now := s.now()

	s.mu.Lock()
	if s.accounts[acc.ID] != acc {
		s.mu.Unlock()
		return model.Asset{}, errors.Wrapf(model.ErrNotFound, "account %s", acc.ID)
	}
	s.assetSeq++
	asset.ID = uuid.NewString()
	asset.AccountID = acc.ID
	asset.Seq = s.assetSeq
	asset.CreatedAt = now.UnixMilli()
	s.assets[asset.ID] = asset
	s.mu.Unlock()

	acc.Record(model.KindAsset, model.OpUpload)
	s.publish(acc.ID, EventAssetAdded, asset.ID, asset.Name)
	return asset, nil
}

func (s *Store) GetAsset(id string) (model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return model.Asset{}, errors.Wrapf(model.ErrNotFound, "asset %s", id)
	}
	return a, nil
}

func (s *Store) RemoveAsset(accountID, id string) error {
	s.mu.Lock()
	a, ok := s.assets[id]
	if !ok || a.AccountID != accountID {
		s.mu.Unlock()
		return errors.Wrapf(model.ErrNotFound, "asset %s", id)
	}
	delete(s.assets, id)
	owner := s.accounts[accountID]
	s.mu.Unlock()

	if owner != nil {
		owner.Record(model.KindAsset, model.OpDelete)
	}
	s.publish(accountID, EventAssetRemoved, id, a.Name)
	return nil
}
