package memory

import (
	"context"
	"sort"
	"sync"

	"chatline/internal/models"
)

// Directory is an in-memory stand-in for the identity subsystem's
// account and group records. The chat core only reads it; the Add
// methods exist for tests and local seeding.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	groups   map[string]models.Group
}

func NewDirectory() *Directory {
	return &Directory{
		accounts: make(map[string]models.Account),
		groups:   make(map[string]models.Group),
	}
}

func (d *Directory) AddAccount(account models.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[account.ID] = account
}

func (d *Directory) AddGroup(group models.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[group.ID] = group
}

func (d *Directory) AccountExists(ctx context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[id]
	return ok, nil
}

func (d *Directory) Group(ctx context.Context, id string) (*models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	group, ok := d.groups[id]
	if !ok {
		return nil, nil
	}
	copied := group
	copied.Members = append([]string(nil), group.Members...)
	return &copied, nil
}

func (d *Directory) GroupsFor(ctx context.Context, accountID string) ([]models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []models.Group
	for _, group := range d.groups {
		for _, member := range group.Members {
			if member == accountID {
				copied := group
				copied.Members = append([]string(nil), group.Members...)
				result = append(result, copied)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
