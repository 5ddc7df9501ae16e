package storage

import (
	"fmt"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/models"
)

// SeedStatuses inserts the closed set of lifecycle statuses. Safe to
// call on every boot; existing rows are left untouched.
func SeedStatuses(db *gormw.DB) error {
	for _, name := range models.AllStatuses() {
		s := &models.InvitationStatus{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(s).Error; err != nil {
			return err
		}
	}
	return nil
}

// StatusRegistry maps status names to their row ids and back. Loaded
// once after seeding, immutable afterwards.
type StatusRegistry struct {
	byName map[models.StatusName]uint
	byID   map[uint]models.StatusName
}

func LoadStatusRegistry(db *gormw.DB) (*StatusRegistry, error) {
	var rows []models.InvitationStatus
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}

	r := &StatusRegistry{
		byName: make(map[models.StatusName]uint, len(rows)),
		byID:   make(map[uint]models.StatusName, len(rows)),
	}
	for _, row := range rows {
		r.byName[row.Name] = row.ID
		r.byID[row.ID] = row.Name
	}

	for _, name := range models.AllStatuses() {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("status registry is missing %q, run SeedStatuses first", name)
		}
	}
	return r, nil
}

// Resolve returns the row id for a status name.
func (r *StatusRegistry) Resolve(name models.StatusName) (uint, error) {
	id, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown invitation status %q", name)
	}
	return id, nil
}

// MustResolve is Resolve for the compile-time status constants, where a
// miss means the registry was never loaded.
func (r *StatusRegistry) MustResolve(name models.StatusName) uint {
	id, err := r.Resolve(name)
	if err != nil {
		panic(err)
	}
	return id
}

// Name returns the status name for a row id, or "" if unknown.
func (r *StatusRegistry) Name(id uint) models.StatusName {
	return r.byID[id]
}

// ResolveAll maps a list of status names to row ids.
func (r *StatusRegistry) ResolveAll(names []models.StatusName) []uint {
	ids := make([]uint, 0, len(names))
	for _, n := range names {
		ids = append(ids, r.MustResolve(n))
	}
	return ids
}
