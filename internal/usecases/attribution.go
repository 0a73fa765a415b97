package usecases

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/attrsync/attrsync/internal/domain"
)

// Lookup bounds for the two activity-log strategies. The keyed lookup reads a
// generous window because system-account noise may bury the human entry; the
// text search is fuzzier and stays tight.
const (
	activityLookupLimit = 20
	activitySearchLimit = 5
)

// AuthorResolver resolves the most plausible human author of a path by
// walking an ordered chain of record-store lookups, degrading from precise
// (file identifier, keyed activity) to fuzzy (free-text activity search) to
// absent. It holds no cache: every resolution reflects the store's current
// state.
type AuthorResolver struct {
	store          domain.RecordStore
	logger         Logger
	rootPrefix     string
	systemAccounts map[string]struct{}
}

// NewAuthorResolver creates an AuthorResolver. store may be nil, in which
// case every resolution returns a zero record and the caller falls back to
// the default identity. systemAccounts is the fixed set of non-human service
// accounts excluded during authorship preference.
func NewAuthorResolver(
	store domain.RecordStore,
	log Logger,
	rootPrefix string,
	systemAccounts []string,
) *AuthorResolver {
	excluded := make(map[string]struct{}, len(systemAccounts))
	for _, account := range systemAccounts {
		if account = strings.TrimSpace(account); account != "" {
			excluded[account] = struct{}{}
		}
	}
	return &AuthorResolver{
		store:          store,
		logger:         log,
		rootPrefix:     rootPrefix,
		systemAccounts: excluded,
	}
}

// ResolveAuthorForPath runs the lookup chain for one logical path. It never
// fails: any store error is logged as a warning and treated as "no result",
// so an unreachable store degrades attribution instead of breaking the run.
func (r *AuthorResolver) ResolveAuthorForPath(ctx context.Context, logicalPath string) domain.AttributionRecord {
	if r.store == nil {
		return domain.AttributionRecord{}
	}

	key := r.pathKey(logicalPath)

	var entries []domain.ActivityEntry
	fileID, found, err := r.store.FileIDByPath(ctx, key)
	if err != nil {
		r.logger.Warn(ctx, "file index lookup failed", map[string]interface{}{
			"path":  key,
			"error": err.Error(),
		})
		found = false
	}

	if found {
		entries, err = r.store.RecentActivityByFileID(ctx, fileID, activityLookupLimit)
		if err != nil {
			r.logger.Warn(ctx, "activity lookup by file id failed", map[string]interface{}{
				"file_id": fileID,
				"error":   err.Error(),
			})
			entries = nil
		}
	} else {
		// New files, or index lag: the activity log may reference the path
		// before a stable identifier exists.
		entries, err = r.store.SearchActivityByPath(ctx, key, activitySearchLimit)
		if err != nil {
			r.logger.Warn(ctx, "activity text search failed", map[string]interface{}{
				"path":  key,
				"error": err.Error(),
			})
			entries = nil
		}
	}

	username := r.pickUser(entries)
	if username == "" {
		return domain.AttributionRecord{}
	}

	record := domain.AttributionRecord{Username: username}
	r.enrich(ctx, &record)

	r.logger.Debug(ctx, "resolved author for path", map[string]interface{}{
		"path":     key,
		"username": record.Username,
		"display":  record.DisplayName,
		"email":    record.Email,
	})
	return record
}

// pathKey translates a logical path into the record store's path convention:
// joined under the configured root prefix, with a single leading separator
// stripped.
func (r *AuthorResolver) pathKey(logicalPath string) string {
	joined := path.Join(r.rootPrefix, logicalPath)
	return strings.TrimPrefix(joined, "/")
}

// pickUser selects the first acting user that is not a known system account.
// If every entry belongs to a service account, the single most recent entry
// wins anyway: recency beats human-ness as a last resort.
func (r *AuthorResolver) pickUser(entries []domain.ActivityEntry) string {
	for _, entry := range entries {
		user := strings.TrimSpace(entry.User)
		if user == "" {
			continue
		}
		if _, system := r.systemAccounts[user]; !system {
			return user
		}
	}
	if len(entries) > 0 {
		return strings.TrimSpace(entries[0].User)
	}
	return ""
}

// enrich fills display name and email for a resolved username through the
// profile lookup chain: user-profile table, then preference keys, then the
// JSON profile blob for whichever field is still missing. Any stage that
// returns nothing simply leaves the field unset.
func (r *AuthorResolver) enrich(ctx context.Context, record *domain.AttributionRecord) {
	if display, ok, err := r.store.DisplayName(ctx, record.Username); err != nil {
		r.warnLookup(ctx, "display name lookup failed", record.Username, err)
	} else if ok {
		record.DisplayName = display
	}

	if email, ok, err := r.store.EmailPreference(ctx, record.Username); err != nil {
		r.warnLookup(ctx, "email preference lookup failed", record.Username, err)
	} else if ok {
		record.Email = email
	}

	if record.DisplayName != "" && record.Email != "" {
		return
	}

	blob, ok, err := r.store.ProfileBlob(ctx, record.Username)
	if err != nil {
		r.warnLookup(ctx, "profile blob lookup failed", record.Username, err)
		return
	}
	if !ok {
		return
	}

	display, email := parseProfileBlob(blob)
	if record.DisplayName == "" {
		record.DisplayName = display
	}
	if record.Email == "" {
		record.Email = email
	}
}

func (r *AuthorResolver) warnLookup(ctx context.Context, msg, username string, err error) {
	r.logger.Warn(ctx, msg, map[string]interface{}{
		"username": username,
		"error":    err.Error(),
	})
}

// profileField is one field of the account profile document. The platform
// stores either a bare string or an object carrying a "value" key.
type profileField struct {
	value string
}

func (f *profileField) UnmarshalJSON(data []byte) error {
	var direct string
	if err := json.Unmarshal(data, &direct); err == nil {
		f.value = direct
		return nil
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	f.value = wrapped.Value
	return nil
}

// parseProfileBlob extracts displayname and email from the JSON profile
// document. Malformed documents yield empty values.
func parseProfileBlob(blob []byte) (display, email string) {
	var doc struct {
		DisplayName profileField `json:"displayname"`
		Email       profileField `json:"email"`
	}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return "", ""
	}
	return doc.DisplayName.value, doc.Email.value
}
