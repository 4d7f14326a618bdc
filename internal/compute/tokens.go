package compute

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// DefaultChainCacheSize is the number of address chains kept in memory.
const DefaultChainCacheSize = 10000

// addressSeparator joins the names of an address chain in places.address.
const addressSeparator = ", "

// TokenComputer is the in-process provider.
//
// For each place it picks a parent (the explicit parent_place_id if set,
// otherwise the smallest indexed boundary containing the centroid), stores
// the resulting address chain and writes name plus address to the search
// index. Parents must already be indexed, which rank ordering guarantees.
type TokenComputer struct {
	places store.PlaceStore
	index  searchindex.Index

	// chains maps place id to that place's name followed by its address.
	chains *lru.Cache[int64, []string]
}

var _ Computer = (*TokenComputer)(nil)

// NewTokenComputer creates a token computer. A cacheSize <= 0 uses
// DefaultChainCacheSize.
func NewTokenComputer(places store.PlaceStore, index searchindex.Index, cacheSize int) *TokenComputer {
	if cacheSize <= 0 {
		cacheSize = DefaultChainCacheSize
	}
	chains, _ := lru.New[int64, []string](cacheSize)
	return &TokenComputer{places: places, index: index, chains: chains}
}

// Compute implements Computer.
func (c *TokenComputer) Compute(ctx context.Context, rec store.Record) error {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return geoerrors.PermanentRecord(fmt.Sprintf("place %d has no name", rec.ID), nil).
			WithDetail("place_id", fmt.Sprint(rec.ID))
	}

	parent, err := c.parentOf(ctx, rec)
	if err != nil {
		return err
	}

	var (
		parentID int64
		address  []string
	)
	if parent != nil {
		parentID = parent.ID
		address = c.chainOf(parent)
	}

	if err := c.places.SaveAddress(ctx, rec.ID, parentID, strings.Join(address, addressSeparator)); err != nil {
		if geoerrors.GetCode(err) == geoerrors.ErrCodeRecordNotFound {
			// A vanished place must not stay searchable.
			if delErr := c.index.Delete(ctx, []int64{rec.ID}); delErr != nil {
				return geoerrors.TransientCompute(
					fmt.Sprintf("place %d disappeared but its search document could not be removed", rec.ID), delErr)
			}
			return geoerrors.PermanentRecord(fmt.Sprintf("place %d disappeared", rec.ID), err)
		}
		return err
	}

	doc := searchindex.Document{PlaceID: rec.ID, Name: name, Address: address}
	if err := c.index.Put(ctx, []searchindex.Document{doc}); err != nil {
		return geoerrors.TransientCompute(fmt.Sprintf("search index write failed for place %d", rec.ID), err)
	}

	c.chains.Add(rec.ID, append([]string{name}, address...))
	return nil
}

func (c *TokenComputer) parentOf(ctx context.Context, rec store.Record) (*store.Record, error) {
	if rec.ParentID == 0 || rec.Boundary {
		return c.places.FindContainingBoundary(ctx, rec)
	}

	parent, err := c.places.GetRecord(ctx, rec.ParentID)
	if geoerrors.GetCode(err) == geoerrors.ErrCodeRecordNotFound {
		return nil, geoerrors.PermanentRecord(
			fmt.Sprintf("parent %d of place %d not found", rec.ParentID, rec.ID), err)
	}
	if err != nil {
		return nil, err
	}
	if !parent.Indexed {
		// Can happen when the parent failed earlier in this run.
		return nil, geoerrors.TransientCompute(
			fmt.Sprintf("parent %d of place %d is not indexed yet", parent.ID, rec.ID), nil)
	}
	return parent, nil
}

func (c *TokenComputer) chainOf(p *store.Record) []string {
	if chain, ok := c.chains.Get(p.ID); ok {
		return chain
	}

	chain := []string{strings.TrimSpace(p.Name)}
	for _, part := range strings.Split(p.Address, addressSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			chain = append(chain, part)
		}
	}
	c.chains.Add(p.ID, chain)
	return chain
}
