package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chatline/internal/models"
)

// Directory reads the account and group records owned by the identity
// subsystem.
//
// Expected schema:
//
//	accounts(id text primary key, display_name text not null, avatar_url text)
//	groups(id text primary key, name text not null, admin_id text not null, icon_url text)
//	group_members(group_id text references groups(id), account_id text not null,
//	              primary key (group_id, account_id))
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) AccountExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	return exists, nil
}

func (d *Directory) Group(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	var icon sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, admin_id, icon_url FROM groups WHERE id = $1`, id).
		Scan(&group.ID, &group.Name, &group.AdminID, &icon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	group.IconURL = icon.String

	rows, err := d.db.QueryContext(ctx,
		`SELECT account_id FROM group_members WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		group.Members = append(group.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return &group, nil
}

func (d *Directory) GroupsFor(ctx context.Context, accountID string) ([]models.Group, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.admin_id, g.icon_url
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.account_id = $1
		ORDER BY g.name ASC, g.id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		var icon sql.NullString
		if err := rows.Scan(&group.ID, &group.Name, &group.AdminID, &icon); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		group.IconURL = icon.String
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}
