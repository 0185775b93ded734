package legacy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

type doc = map[string]any

// collections holds every collection decoded as loosely typed documents.
type collections map[store.Name][]doc

func normalizeUser(u doc, hasher Hasher) error {
	normalizeID(u)

	if plain, ok := u["password"].(string); ok {
		if hash, _ := u["passwordHash"].(string); hash == "" && plain != "" {
			hashed, err := hasher.Hash(plain)
			if err != nil {
				return fmt.Errorf("hashing password for user %v: %w", u["id"], err)
			}
			u["passwordHash"] = hashed
		}
	}
	delete(u, "password")

	if role, _ := u["role"].(string); role == "" {
		u["role"] = string(models.RoleStudent)
	}
	normalizeTime(u, "createdAt")
	normalizeTime(u, "updatedAt")
	u["clubs"] = idList(u["clubs"])
	u["rsvps"] = idList(u["rsvps"])
	u["friends"] = idList(u["friends"])
	return nil
}

func normalizePost(p doc) {
	normalizeID(p)
	rename(p, "authorName", "author")
	rename(p, "createdAt", "timestamp")
	normalizeTime(p, "timestamp")
	p["authorId"] = stringOf(p["authorId"])

	// Early releases stored the liking user ids under "likes".
	likedBy := idList(p["likedBy"])
	if _, isCounter := p["likes"].(float64); !isCounter {
		for _, id := range idList(p["likes"]) {
			likedBy, _ = models.AddID(likedBy, id)
		}
	}
	p["likedBy"] = likedBy
	p["likes"] = len(likedBy)

	comments := docList(p["comments"])
	for _, c := range comments {
		normalizeID(c)
		rename(c, "authorName", "author")
		rename(c, "createdAt", "timestamp")
		normalizeTime(c, "timestamp")
		c["authorId"] = stringOf(c["authorId"])
	}
	p["comments"] = comments
}

func normalizeClub(c doc) {
	normalizeID(c)
	normalizeTime(c, "createdAt")
	delete(c, "icon")
}

func normalizeEvent(e doc) {
	normalizeID(e)
	normalizeTime(e, "date")
	normalizeTime(e, "createdAt")
}

func normalizeChat(c doc) {
	normalizeID(c)
	c["participants"] = idList(c["participants"])
	normalizeTime(c, "createdAt")
	normalizeTime(c, "updatedAt")

	details := docList(c["participantDetails"])
	for _, d := range details {
		normalizeID(d)
	}
	c["participantDetails"] = details

	messages := docList(c["messages"])
	for _, m := range messages {
		normalizeID(m)
		rename(m, "sender", "senderId")
		rename(m, "text", "content")
		m["senderId"] = stringOf(m["senderId"])
		normalizeTime(m, "timestamp")
	}
	c["messages"] = messages
}

// reconcile makes a many-to-many membership consistent on both sides. A user
// is a member of a group if either side lists the other. References to
// documents that no longer exist are dropped.
func reconcile(users, groups []doc, groupKey, userKey string) {
	userIDs := make(map[string]bool, len(users))
	for _, u := range users {
		userIDs[stringOf(u["id"])] = true
	}
	groupIDs := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupIDs[stringOf(g["id"])] = true
	}

	members := make(map[string][]string, len(groups))
	for _, g := range groups {
		gid := stringOf(g["id"])
		// Counter-shaped values carry no ids; membership comes from users.
		for _, uid := range idList(g[groupKey]) {
			if userIDs[uid] {
				members[gid], _ = models.AddID(members[gid], uid)
			}
		}
	}

	joined := make(map[string][]string, len(users))
	for _, u := range users {
		uid := stringOf(u["id"])
		for _, gid := range idList(u[userKey]) {
			if !groupIDs[gid] {
				continue
			}
			joined[uid], _ = models.AddID(joined[uid], gid)
			members[gid], _ = models.AddID(members[gid], uid)
		}
	}

	for _, g := range groups {
		gid := stringOf(g["id"])
		for _, uid := range members[gid] {
			joined[uid], _ = models.AddID(joined[uid], gid)
		}
		g[groupKey] = orEmpty(members[gid])
	}
	for _, u := range users {
		u[userKey] = orEmpty(joined[stringOf(u["id"])])
	}
}

func normalizeAll(c collections, hasher Hasher) error {
	for _, u := range c[store.Users] {
		if err := normalizeUser(u, hasher); err != nil {
			return err
		}
	}
	for _, p := range c[store.Posts] {
		normalizePost(p)
	}
	for _, club := range c[store.Clubs] {
		normalizeClub(club)
	}
	for _, e := range c[store.Events] {
		normalizeEvent(e)
	}
	for _, chat := range c[store.Chats] {
		normalizeChat(chat)
	}

	reconcile(c[store.Users], c[store.Clubs], "members", "clubs")
	reconcile(c[store.Users], c[store.Events], "attendees", "rsvps")
	return nil
}

func rename(d doc, from, to string) {
	v, ok := d[from]
	if !ok {
		return
	}
	if _, exists := d[to]; !exists {
		d[to] = v
	}
	delete(d, from)
}

func normalizeID(d doc) {
	if v, ok := d["id"]; ok {
		d["id"] = stringOf(v)
	}
}

// legacyTimeLayouts are the string forms the mobile app stored: full ISO
// strings, date-only picker values and Date.prototype.toString output.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.DateOnly,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 02 2006",
	"01/02/2006",
}

// normalizeTime rewrites epoch-millisecond numbers and the legacy string
// forms as RFC 3339. A value that cannot be read is dropped, leaving the
// field at its zero time.
func normalizeTime(d doc, key string) {
	v, ok := d[key]
	if !ok || v == nil {
		delete(d, key)
		return
	}
	switch t := v.(type) {
	case float64:
		d[key] = time.UnixMilli(int64(t)).UTC().Format(time.RFC3339Nano)
	case string:
		if parsed, ok := parseLegacyTime(t); ok {
			d[key] = parsed.Format(time.RFC3339Nano)
		} else {
			delete(d, key)
		}
	default:
		delete(d, key)
	}
}

func parseLegacyTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// Date.toString appends a zone name in parentheses.
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

// idList returns the ids in v, deduplicated, or an empty list when v is not
// an array.
func idList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := stringOf(item); id != "" {
			ids, _ = models.AddID(ids, id)
		}
	}
	return ids
}

func docList(v any) []doc {
	items, _ := v.([]any)
	docs := make([]doc, 0, len(items))
	for _, item := range items {
		if d, ok := item.(map[string]any); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
