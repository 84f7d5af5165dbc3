package store

import "time"

// GORM models used for persistence. The schema itself is owned by the goose
// migrations in migrations/.
type AccountModel struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (AccountModel) TableName() string { return "accounts" }

type LabelModel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex:labels_user_id_name_key,priority:2"`
	UserID    uint      `gorm:"not null;uniqueIndex:labels_user_id_name_key,priority:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (LabelModel) TableName() string { return "labels" }

type NoteModel struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"not null"`
	Content    string `gorm:"type:text;not null"`
	SearchText string `gorm:"type:text;not null"`
	Color      string `gorm:"not null"`
	IsArchived bool   `gorm:"not null"`
	IsDeleted  bool   `gorm:"not null"`
	IsPinned   bool   `gorm:"not null"`
	Position   int    `gorm:"not null"`
	Reminder   *time.Time
	UserID     uint         `gorm:"not null;index"`
	Labels     []LabelModel `gorm:"many2many:note_labels;joinForeignKey:NoteID;joinReferences:LabelID"`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
}

func (NoteModel) TableName() string { return "notes" }
