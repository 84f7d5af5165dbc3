package domain

import "time"

type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the projection returned to clients alongside a token.
type PublicUser struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Public strips everything but the client-visible identity fields.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Username: u.Username}
}

// Session is the login result handed back to clients.
type Session struct {
	AccessToken string     `json:"access_token"`
	User        PublicUser `json:"user"`
}

type Label struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UserID    uint      `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Note struct {
	ID         uint       `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Color      string     `json:"color"`
	IsArchived bool       `json:"isArchived"`
	IsDeleted  bool       `json:"isDeleted"`
	IsPinned   bool       `json:"isPinned"`
	Position   int        `json:"position"`
	Reminder   *time.Time `json:"reminder"`
	UserID     uint       `json:"userId"`
	Labels     []Label    `json:"categories"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NoteFilter selects the notes returned by a listing.
type NoteFilter struct {
	Archived    bool
	Deleted     bool
	HasReminder bool
	LabelID     uint
	AnyLabelIDs []uint
	Search      string
	Cursor      uint
	Limit       int
}

// NotePage is one keyset page of notes.
type NotePage struct {
	Items      []Note `json:"items"`
	NextCursor *uint  `json:"nextCursor"`
}

// NotePatch carries a partial note update. Nil fields are left untouched.
type NotePatch struct {
	Title      *string
	Content    *string
	Color      *string
	IsArchived *bool
	IsPinned   *bool
	IsDeleted  *bool
	LabelIDs   *[]uint

	// ReminderSet distinguishes "clear the reminder" (Reminder == nil) from
	// "leave it alone".
	ReminderSet bool
	Reminder    *time.Time
}

type NotePosition struct {
	ID       uint `json:"id"`
	Position int  `json:"position"`
}

// StarterNote is a note plus the names of the labels it belongs to.
type StarterNote struct {
	Note       Note
	LabelNames []string
}
