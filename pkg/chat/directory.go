package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rubiojr/huddle/pkg/log"
)

// Directory provisions the standard broadcast channels, resolves direct
// channels and answers membership queries.
type Directory struct {
	store Store
	cfg   settings
	log   *log.Logger
}

func NewDirectory(store Store, opts ...Option) *Directory {
	return &Directory{
		store: store,
		cfg:   newSettings(opts),
		log:   log.ForService("directory"),
	}
}

// EnsureStandardMembership joins userID to every channel its role and
// department entitle it to, creating missing broadcast channels. Calling it
// repeatedly is harmless.
func (d *Directory) EnsureStandardMembership(ctx context.Context, userID, departmentID, role string) error {
	general, err := d.ensureBroadcast(ctx, KindOrgWide)
	if err != nil {
		return err
	}
	if err := d.store.AddMembers(ctx, general.ID, userID); err != nil {
		return fmt.Errorf("joining general channel: %w", err)
	}

	if role == RoleManager {
		managers, err := d.ensureBroadcast(ctx, KindManagers)
		if err != nil {
			return err
		}
		if err := d.store.AddMembers(ctx, managers.ID, userID); err != nil {
			return fmt.Errorf("joining managers channel: %w", err)
		}

		departments, err := d.store.ListChannels(ctx, KindDepartment)
		if err != nil {
			return fmt.Errorf("listing department channels: %w", err)
		}
		for _, ch := range departments {
			if err := d.store.AddMembers(ctx, ch.ID, userID); err != nil {
				return fmt.Errorf("joining department channel %s: %w", ch.ID, err)
			}
		}
		return nil
	}

	if departmentID == "" {
		return nil
	}
	dept, err := d.ensureDepartment(ctx, departmentID)
	if err != nil {
		return err
	}
	if err := d.store.AddMembers(ctx, dept.ID, userID); err != nil {
		return fmt.Errorf("joining department channel %s: %w", dept.ID, err)
	}
	return nil
}

func (d *Directory) ensureBroadcast(ctx context.Context, kind ChannelKind) (*Channel, error) {
	ch, err := d.store.FindChannel(ctx, kind)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("finding %s channel: %w", kind, err)
	}

	proto := &Channel{Kind: kind}
	switch kind {
	case KindOrgWide:
		proto.Name = "General"
		proto.Description = "General discussion for everyone"
	case KindManagers:
		proto.Name = "Managers"
		proto.Description = "Private channel for managers"
	default:
		return nil, fmt.Errorf("%s is not a broadcast channel kind", kind)
	}

	ch, err = d.store.CreateChannel(ctx, proto)
	if err != nil {
		return nil, fmt.Errorf("creating %s channel: %w", kind, err)
	}
	d.log.Infof("created %s channel %s", ch.Name, ch.ID)
	return ch, nil
}

func (d *Directory) ensureDepartment(ctx context.Context, departmentID string) (*Channel, error) {
	ch, err := d.store.FindDepartmentChannel(ctx, departmentID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("finding department channel %s: %w", departmentID, err)
	}

	name := departmentID
	dept, err := d.store.GetDepartment(ctx, departmentID)
	switch {
	case err == nil && dept.Name != "":
		name = dept.Name
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("getting department %s: %w", departmentID, err)
	}

	ch, err = d.store.CreateChannel(ctx, &Channel{
		Name:         name,
		Kind:         KindDepartment,
		DepartmentID: departmentID,
		Description:  fmt.Sprintf("Channel for %s department", name),
	})
	if err != nil {
		return nil, fmt.Errorf("creating department channel %s: %w", departmentID, err)
	}
	d.log.Infof("created department channel: %s", name)
	return ch, nil
}

// GetOrCreateDirect returns the two-member DIRECT channel shared by userA and
// userB, creating it when none exists. created reports whether a new channel
// was made.
//
// The lookup and the create are separate statements, so two concurrent calls
// for a fresh pair may both create a channel.
func (d *Directory) GetOrCreateDirect(ctx context.Context, userA, userB string) (ch *Channel, created bool, err error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, false, ErrSelfDirect
	}

	shared, err := d.store.SharedChannelIDs(ctx, KindDirect, userA, userB)
	if err != nil {
		return nil, false, fmt.Errorf("finding shared direct channels: %w", err)
	}
	for _, id := range shared {
		n, err := d.store.CountMembers(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("counting members of %s: %w", id, err)
		}
		if n != 2 {
			continue
		}
		ch, err := d.store.GetChannel(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("getting channel %s: %w", id, err)
		}
		return ch, false, nil
	}

	ch, err = d.store.CreateChannel(ctx, &Channel{
		Name:        "DM",
		Kind:        KindDirect,
		CreatedByID: userA,
	})
	if err != nil {
		return nil, false, fmt.Errorf("creating direct channel: %w", err)
	}
	if err := d.store.AddMembers(ctx, ch.ID, userA, userB); err != nil {
		return nil, false, fmt.Errorf("adding direct channel members: %w", err)
	}
	d.log.Debugf("created direct channel %s for %s and %s", ch.ID, userA, userB)
	return ch, true, nil
}

// ListChannelsFor summarizes every channel userID belongs to, most recently
// active conversation first. Channels without messages sort last.
func (d *Directory) ListChannelsFor(ctx context.Context, userID string) ([]ChannelSummary, error) {
	memberships, err := d.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []ChannelSummary{}, nil
	}

	ids := make([]string, 0, len(memberships))
	readAt := make(map[string]*Membership, len(memberships))
	for i := range memberships {
		ids = append(ids, memberships[i].ChannelID)
		readAt[memberships[i].ChannelID] = &memberships[i]
	}

	channels, err := d.store.ListChannelsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}

	type pending struct {
		summary ChannelSummary
		last    *Message
		peerID  string
	}
	rows := make([]pending, 0, len(channels))
	lookup := make(map[string]struct{})

	for _, ch := range channels {
		var lastRead *time.Time
		if m, ok := readAt[ch.ID]; ok {
			lastRead = m.LastReadAt
		}
		unread, err := d.store.CountMessages(ctx, ch.ID, lastRead)
		if err != nil {
			return nil, fmt.Errorf("counting unread in %s: %w", ch.ID, err)
		}

		last, err := d.store.LatestMessage(ctx, ch.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("getting last message in %s: %w", ch.ID, err)
		}
		if last != nil {
			lookup[last.SenderID] = struct{}{}
		}

		row := pending{
			summary: ChannelSummary{
				ID:           ch.ID,
				Name:         ch.Name,
				Kind:         ch.Kind,
				DepartmentID: ch.DepartmentID,
				Description:  ch.Description,
				UnreadCount:  unread,
				updatedAt:    ch.UpdatedAt,
			},
			last: last,
		}

		if ch.Kind == KindDirect {
			members, err := d.store.ListMembershipsByChannel(ctx, ch.ID)
			if err != nil {
				return nil, fmt.Errorf("listing members of %s: %w", ch.ID, err)
			}
			for _, m := range members {
				if m.UserID != userID {
					row.peerID = m.UserID
					lookup[m.UserID] = struct{}{}
					break
				}
			}
		}
		rows = append(rows, row)
	}

	users, err := d.store.GetUsers(ctx, keys(lookup))
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}

	result := make([]ChannelSummary, 0, len(rows))
	for _, row := range rows {
		s := row.summary
		if row.last != nil {
			s.LastMessage = &LastMessage{
				Content:    Truncate(row.last.Content, d.cfg.previewLength),
				CreatedAt:  row.last.CreatedAt,
				SenderName: users[row.last.SenderID].Info().DisplayName("Unknown"),
			}
		}
		if row.peerID != "" {
			peer := users[row.peerID]
			s.DMUser = &DMUser{
				UserID:    row.peerID,
				FirstName: peer.FirstName,
				LastName:  peer.LastName,
				AvatarURL: peer.AvatarURL,
			}
			s.Name = peer.Info().DisplayName("DM")
		}
		result = append(result, s)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].LastMessage, result[j].LastMessage
		switch {
		case a == nil && b == nil:
			return result[i].updatedAt.After(result[j].updatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return result, nil
}

// Summary returns userID's summary of a single channel.
func (d *Directory) Summary(ctx context.Context, userID, channelID string) (*ChannelSummary, error) {
	all, err := d.ListChannelsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == channelID {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

// MembersOf lists a channel's members with display info and read cursor.
func (d *Directory) MembersOf(ctx context.Context, channelID string) ([]MemberInfo, error) {
	members, err := d.store.ListMembershipsByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := d.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}

	result := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		u := users[m.UserID]
		result = append(result, MemberInfo{
			UserID:     m.UserID,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			AvatarURL:  u.AvatarURL,
			LastReadAt: m.LastReadAt,
		})
	}
	return result, nil
}

// ChannelIDsFor returns the ids of every channel userID belongs to.
func (d *Directory) ChannelIDsFor(ctx context.Context, userID string) ([]string, error) {
	memberships, err := d.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ChannelID)
	}
	return ids, nil
}

// MemberIDs returns the user ids of a channel's members.
func (d *Directory) MemberIDs(ctx context.Context, channelID string) ([]string, error) {
	members, err := d.store.ListMembershipsByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (d *Directory) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	_, err := d.store.GetMembership(ctx, channelID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting membership: %w", err)
	}
	return true, nil
}

// Users lists directory entries for starting a direct conversation,
// excluding excludeUserID.
func (d *Directory) Users(ctx context.Context, excludeUserID string) ([]DirectoryEntry, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	departments, err := d.store.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	names := make(map[string]string, len(departments))
	for _, dept := range departments {
		names[dept.ID] = dept.Name
	}

	entries := make([]DirectoryEntry, 0, len(users))
	for _, u := range users {
		if u.ID == excludeUserID {
			continue
		}
		entries = append(entries, DirectoryEntry{
			UserID:         u.ID,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			AvatarURL:      u.AvatarURL,
			Email:          u.Email,
			DepartmentName: names[u.DepartmentID],
		})
	}
	return entries, nil
}

// Seed creates the general, managers and per-department channels and joins
// every known user according to EnsureStandardMembership.
func (d *Directory) Seed(ctx context.Context) error {
	if _, err := d.ensureBroadcast(ctx, KindOrgWide); err != nil {
		return err
	}
	if _, err := d.ensureBroadcast(ctx, KindManagers); err != nil {
		return err
	}

	departments, err := d.store.ListDepartments(ctx)
	if err != nil {
		return fmt.Errorf("listing departments: %w", err)
	}
	for _, dept := range departments {
		if _, err := d.ensureDepartment(ctx, dept.ID); err != nil {
			return err
		}
	}

	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if err := d.EnsureStandardMembership(ctx, u.ID, u.DepartmentID, u.Role); err != nil {
			return fmt.Errorf("seeding memberships for %s: %w", u.ID, err)
		}
	}

	d.log.Infof("channel seeding complete: %d departments, %d users", len(departments), len(users))
	return nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
