package glpi

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan-nascimento51/glpi-dashboard-sub003/internal/domain"
)

type glpiUser struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	RealName  string `json:"realname"`
	FirstName string `json:"firstname"`
	IsActive  int    `json:"is_active"`
	IsDeleted int    `json:"is_deleted"`
}

type groupUserRow struct {
	ID       int `json:"id"`
	UsersID  int `json:"users_id"`
	GroupsID int `json:"groups_id"`
}

type profileUserRow struct {
	ID         int `json:"id"`
	UsersID    int `json:"users_id"`
	ProfilesID int `json:"profiles_id"`
}

// User fetches one technician's identity
func (c *Client) User(ctx context.Context, id int) (*domain.Technician, error) {
	var u glpiUser
	if _, err := c.getJSON(ctx, fmt.Sprintf("User/%d", id), nil, &u); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.RealName))
	if name == "" {
		name = u.Name
	}
	return &domain.Technician{
		ID:      u.ID,
		Name:    name,
		Active:  u.IsActive == 1,
		Deleted: u.IsDeleted == 1,
	}, nil
}

// UserGroups lists the group ids a user belongs to
func (c *Client) UserGroups(ctx context.Context, userID int) ([]int, error) {
	var rows []groupUserRow
	if _, err := c.getJSON(ctx, fmt.Sprintf("User/%d/Group_User", userID), nil, &rows); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GroupsID)
	}
	return ids, nil
}

// UserProfiles lists the access-profile ids assigned to a user
func (c *Client) UserProfiles(ctx context.Context, userID int) ([]int, error) {
	var rows []profileUserRow
	if _, err := c.getJSON(ctx, fmt.Sprintf("User/%d/Profile_User", userID), nil, &rows); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProfilesID)
	}
	return ids, nil
}

// GroupMembers lists the user ids belonging to a group
func (c *Client) GroupMembers(ctx context.Context, groupID int) ([]int, error) {
	var rows []groupUserRow
	if _, err := c.getJSON(ctx, fmt.Sprintf("Group/%d/Group_User", groupID), nil, &rows); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UsersID)
	}
	return ids, nil
}
