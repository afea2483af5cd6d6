package notes

import (
	"time"

	"github.com/mdouchement/notepad/internal/model"
)

// DefaultTitle is the title of notes created without title.
const DefaultTitle = "Untitled Note"

type (
	// A Note is the local representation of a note.
	// A note is either local-only (IsLocal, no LastSynced) or mirrored (!IsLocal, LastSynced set).
	Note struct {
		ID         string     `json:"id"`
		Title      string     `json:"title"`
		Content    string     `json:"content"`
		CreatedAt  time.Time  `json:"createdAt"`
		UpdatedAt  time.Time  `json:"updatedAt"`
		DeviceInfo string     `json:"deviceInfo,omitempty"`
		CloudID    string     `json:"cloudId,omitempty"`
		LastSynced *time.Time `json:"lastSynced,omitempty"`
		IsLocal    bool       `json:"isLocal"`
	}

	// A Patch holds the fields modified by an update, nil fields are left untouched.
	Patch struct {
		Title   *string
		Content *string
	}
)

// FromRow converts a remote row to the local note shape.
// The remote identifier becomes both ID and CloudID.
func FromRow(row model.Note) Note {
	n := Note{
		ID:         row.ID,
		Title:      row.Title,
		Content:    row.Content,
		DeviceInfo: model.Value(row.DeviceInfo),
		CloudID:    row.ID,
		IsLocal:    false,
	}
	if row.CreatedAt != nil {
		n.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		n.UpdatedAt = *row.UpdatedAt
	}
	synced := n.UpdatedAt
	n.LastSynced = &synced
	return n
}

// Row converts the note to a remote row scoped to the given identifiers.
func (n Note) Row(deviceID, anonymousUserID string) model.Note {
	id := n.CloudID
	if id == "" {
		id = n.ID
	}
	created := n.CreatedAt
	updated := n.UpdatedAt

	return model.Note{
		Base: model.Base{
			ID:        id,
			CreatedAt: &created,
			UpdatedAt: &updated,
		},
		Title:           n.Title,
		Content:         n.Content,
		DeviceInfo:      model.String(n.DeviceInfo),
		DeviceID:        model.String(deviceID),
		AnonymousUserID: anonymousUserID,
		IsDeleted:       false,
	}
}

// Title returns a Patch updating the title.
func Title(title string) Patch {
	return Patch{Title: &title}
}

// Content returns a Patch updating the content.
func Content(content string) Patch {
	return Patch{Content: &content}
}

// Merge returns p overridden by the defined fields of other.
func (p Patch) Merge(other Patch) Patch {
	if other.Title != nil {
		p.Title = other.Title
	}
	if other.Content != nil {
		p.Content = other.Content
	}
	return p
}

// Empty returns true if the patch does not modify anything.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil
}

func (p Patch) apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
}

// Merge reconciles the remote notes with the local ones.
// Remote notes always take precedence (last-remote-wins, no timestamp comparison),
// local notes absent remotely are kept only when they are local-only.
func Merge(remote, local []Note) []Note {
	merged := make([]Note, 0, len(remote)+len(local))
	known := make(map[string]bool, len(remote))

	for _, n := range remote {
		if known[n.ID] {
			continue
		}
		known[n.ID] = true
		merged = append(merged, n)
	}

	for _, n := range local {
		if !known[n.ID] && n.IsLocal {
			merged = append(merged, n)
		}
	}

	return merged
}
