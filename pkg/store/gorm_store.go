package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"keepnotes/pkg/domain"
	"keepnotes/pkg/richtext"
)

const migrateLockID int64 = 73217322

//go:embed migrations/*.sql
var migrationFS embed.FS

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and applies pending migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already opened handle. Migrations are not run.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func migrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(context.Background(), conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
	os.Exit(1)
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAccount inserts the account and fills in the assigned id and timestamps.
func (s *GormStore) CreateAccount(ctx context.Context, u *domain.User) error {
	model := accountToModel(*u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateError(err)
	}
	*u = accountFromModel(model)
	return nil
}

func (s *GormStore) GetAccountByID(ctx context.Context, id uint) (domain.User, bool, error) {
	var m AccountModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return accountFromModel(m), true, nil
}

// FindAccountByLogin matches the identifier against the email or,
// case-insensitively, the username.
func (s *GormStore) FindAccountByLogin(ctx context.Context, identifier string) (domain.User, bool, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	var m AccountModel
	err := s.db.WithContext(ctx).
		Where("email = ? OR LOWER(username) = ?", identifier, identifier).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return accountFromModel(m), true, nil
}

func (s *GormStore) HasAccountEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&AccountModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) HasAccountUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FirstAccountByEmailPrefix returns the lowest-id account whose email starts
// with prefix. The read takes no lock.
func (s *GormStore) FirstAccountByEmailPrefix(ctx context.Context, prefix string) (domain.User, bool, error) {
	var models []AccountModel
	err := s.db.WithContext(ctx).
		Where("email LIKE ?", likePrefix(prefix)).
		Order("id ASC").
		Limit(1).
		Find(&models).Error
	if err != nil {
		return domain.User{}, false, err
	}
	if len(models) == 0 {
		return domain.User{}, false, nil
	}
	return accountFromModel(models[0]), true, nil
}

func (s *GormStore) ListAccountsByEmailPrefix(ctx context.Context, prefix string) ([]domain.User, error) {
	var models []AccountModel
	err := s.db.WithContext(ctx).
		Where("email LIKE ?", likePrefix(prefix)).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(models))
	for _, m := range models {
		out = append(out, accountFromModel(m))
	}
	return out, nil
}

func (s *GormStore) CountAccountsByEmailPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("email LIKE ?", likePrefix(prefix)).
		Count(&count).Error
	return count, err
}

// SwapAccountIdentity rewrites email and username only if the row still
// carries oldEmail. The returned count is the compare-and-swap outcome.
func (s *GormStore) SwapAccountIdentity(ctx context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ? AND email = ?", id, oldEmail).
		Updates(map[string]any{
			"email":    newEmail,
			"username": newUsername,
		})
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAccountsCascade removes notes, then labels, then the accounts in a
// single transaction.
func (s *GormStore) DeleteAccountsCascade(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id IN ?", ids).Delete(&NoteModel{}).Error; err != nil {
			return fmt.Errorf("delete notes: %w", err)
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&LabelModel{}).Error; err != nil {
			return fmt.Errorf("delete labels: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&AccountModel{}).Error; err != nil {
			return fmt.Errorf("delete accounts: %w", err)
		}
		return nil
	})
}

func (s *GormStore) CreateLabel(ctx context.Context, l *domain.Label) error {
	model := LabelModel{Name: l.Name, UserID: l.UserID}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateError(err)
	}
	*l = labelFromModel(model)
	return nil
}

func (s *GormStore) ListLabels(ctx context.Context, userID uint) ([]domain.Label, error) {
	var models []LabelModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Label, 0, len(models))
	for _, m := range models {
		out = append(out, labelFromModel(m))
	}
	return out, nil
}

func (s *GormStore) RenameLabel(ctx context.Context, userID, id uint, name string) (domain.Label, bool, error) {
	res := s.db.WithContext(ctx).Model(&LabelModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("name", name)
	if res.Error != nil {
		return domain.Label{}, false, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Label{}, false, nil
	}
	var m LabelModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return domain.Label{}, false, err
	}
	return labelFromModel(m), true, nil
}

func (s *GormStore) DeleteLabel(ctx context.Context, userID, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&LabelModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreateNote inserts the note and links the given labels that belong to the
// same user. Foreign label ids are ignored.
func (s *GormStore) CreateNote(ctx context.Context, n *domain.Note, labelIDs []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := noteToModel(*n)
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return translateError(err)
		}
		if err := linkLabels(tx, model.ID, model.UserID, labelIDs); err != nil {
			return err
		}
		if err := tx.Preload("Labels").First(&model, "id = ?", model.ID).Error; err != nil {
			return err
		}
		*n = noteFromModel(model)
		return nil
	})
}

func (s *GormStore) GetNote(ctx context.Context, userID, id uint) (domain.Note, bool, error) {
	var m NoteModel
	err := s.db.WithContext(ctx).Preload("Labels").First(&m, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Note{}, false, nil
		}
		return domain.Note{}, false, err
	}
	return noteFromModel(m), true, nil
}

// ListNotes returns one page in (pinned desc, position, id) order. The cursor
// is the id of the last note of the previous page.
func (s *GormStore) ListNotes(ctx context.Context, userID uint, f domain.NoteFilter) (domain.NotePage, error) {
	limit := NormalizeLimit(f.Limit)
	page := domain.NotePage{Items: []domain.Note{}}

	q := s.db.WithContext(ctx).Model(&NoteModel{}).Where("user_id = ? AND is_deleted = ?", userID, f.Deleted)
	if !f.Deleted {
		q = q.Where("is_archived = ?", f.Archived)
	}
	if f.HasReminder {
		q = q.Where("reminder IS NOT NULL")
	}
	if f.LabelID != 0 {
		q = q.Where("id IN (SELECT note_id FROM note_labels WHERE label_id = ?)", f.LabelID)
	}
	if len(f.AnyLabelIDs) > 0 {
		q = q.Where("id IN (SELECT note_id FROM note_labels WHERE label_id IN ?)", f.AnyLabelIDs)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		q = q.Where("search_text LIKE ?", "%"+likeEscaper.Replace(term)+"%")
	}
	if f.Cursor != 0 {
		var cur NoteModel
		err := s.db.WithContext(ctx).
			Select("id", "is_pinned", "position").
			Where("id = ? AND user_id = ?", f.Cursor, userID).
			Take(&cur).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return page, nil
			}
			return page, err
		}
		q = q.Where(
			"((is_pinned < ?) OR (is_pinned = ? AND (position > ? OR (position = ? AND id > ?))))",
			cur.IsPinned, cur.IsPinned, cur.Position, cur.Position, cur.ID,
		)
	}

	var models []NoteModel
	err := q.Preload("Labels").
		Order("is_pinned DESC, position ASC, id ASC").
		Limit(limit + 1).
		Find(&models).Error
	if err != nil {
		return page, err
	}
	if len(models) > limit {
		models = models[:limit]
		next := models[limit-1].ID
		page.NextCursor = &next
	}
	for _, m := range models {
		page.Items = append(page.Items, noteFromModel(m))
	}
	return page, nil
}

func (s *GormStore) UpdateNote(ctx context.Context, userID, id uint, patch domain.NotePatch) (domain.Note, bool, error) {
	var out domain.Note
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m NoteModel
		if err := tx.Where("id = ? AND user_id = ?", id, userID).Take(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		note := noteFromModel(m)
		ApplyNotePatch(&note, patch)
		m = noteToModel(note)
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return translateError(err)
		}
		if patch.LabelIDs != nil {
			if err := tx.Exec("DELETE FROM note_labels WHERE note_id = ?", m.ID).Error; err != nil {
				return fmt.Errorf("unlink labels: %w", err)
			}
			if err := linkLabels(tx, m.ID, userID, *patch.LabelIDs); err != nil {
				return err
			}
		}
		if err := tx.Preload("Labels").First(&m, "id = ?", m.ID).Error; err != nil {
			return err
		}
		out = noteFromModel(m)
		return nil
	})
	if err != nil {
		return domain.Note{}, false, err
	}
	return out, found, nil
}

// ReorderNotes writes positions for the user's notes in one transaction and
// reports how many rows changed. Ids owned by other users are skipped.
func (s *GormStore) ReorderNotes(ctx context.Context, userID uint, positions []domain.NotePosition) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range positions {
			res := tx.Model(&NoteModel{}).
				Where("id = ? AND user_id = ?", p.ID, userID).
				Update("position", p.Position)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *GormStore) DeleteNote(ctx context.Context, userID, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&NoteModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MinNotePosition(ctx context.Context, userID uint) (int, bool, error) {
	var minPos sql.NullInt64
	row := s.db.WithContext(ctx).Model(&NoteModel{}).
		Where("user_id = ?", userID).
		Select("MIN(position)").
		Row()
	if err := row.Scan(&minPos); err != nil {
		return 0, false, err
	}
	if !minPos.Valid {
		return 0, false, nil
	}
	return int(minPos.Int64), true, nil
}

// CreateStarterSet writes labels and notes for a fresh account atomically.
func (s *GormStore) CreateStarterSet(ctx context.Context, userID uint, labels []string, notes []domain.StarterNote) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]uint, len(labels))
		for _, name := range labels {
			label := LabelModel{Name: name, UserID: userID}
			if err := tx.Create(&label).Error; err != nil {
				return fmt.Errorf("create label %q: %w", name, translateError(err))
			}
			byName[name] = label.ID
		}
		for _, starter := range notes {
			note := starter.Note
			note.UserID = userID
			model := noteToModel(note)
			if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
				return fmt.Errorf("create note %q: %w", note.Title, err)
			}
			ids := make([]uint, 0, len(starter.LabelNames))
			for _, name := range starter.LabelNames {
				if id, ok := byName[name]; ok {
					ids = append(ids, id)
				}
			}
			if err := linkLabels(tx, model.ID, userID, ids); err != nil {
				return err
			}
		}
		return nil
	})
}

func linkLabels(tx *gorm.DB, noteID, userID uint, labelIDs []uint) error {
	if len(labelIDs) == 0 {
		return nil
	}
	err := tx.Exec(
		"INSERT INTO note_labels (note_id, label_id) SELECT ?, id FROM labels WHERE user_id = ? AND id IN ? ON CONFLICT DO NOTHING",
		noteID, userID, labelIDs,
	).Error
	if err != nil {
		return fmt.Errorf("link labels: %w", err)
	}
	return nil
}

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func accountToModel(u domain.User) AccountModel {
	return AccountModel{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func accountFromModel(m AccountModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func labelFromModel(m LabelModel) domain.Label {
	return domain.Label{
		ID:        m.ID,
		Name:      m.Name,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func noteToModel(n domain.Note) NoteModel {
	return NoteModel{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		SearchText: richtext.SearchText(n.Title, n.Content),
		Color:      n.Color,
		IsArchived: n.IsArchived,
		IsDeleted:  n.IsDeleted,
		IsPinned:   n.IsPinned,
		Position:   n.Position,
		Reminder:   n.Reminder,
		UserID:     n.UserID,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func noteFromModel(m NoteModel) domain.Note {
	labels := make([]domain.Label, 0, len(m.Labels))
	for _, l := range m.Labels {
		labels = append(labels, labelFromModel(l))
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return domain.Note{
		ID:         m.ID,
		Title:      m.Title,
		Content:    m.Content,
		Color:      m.Color,
		IsArchived: m.IsArchived,
		IsDeleted:  m.IsDeleted,
		IsPinned:   m.IsPinned,
		Position:   m.Position,
		Reminder:   m.Reminder,
		UserID:     m.UserID,
		Labels:     labels,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// ApplyNotePatch copies the set fields of patch onto n.
func ApplyNotePatch(n *domain.Note, patch domain.NotePatch) {
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.Color != nil {
		n.Color = *patch.Color
	}
	if patch.IsArchived != nil {
		n.IsArchived = *patch.IsArchived
	}
	if patch.IsPinned != nil {
		n.IsPinned = *patch.IsPinned
	}
	if patch.IsDeleted != nil {
		n.IsDeleted = *patch.IsDeleted
	}
	if patch.ReminderSet {
		n.Reminder = patch.Reminder
	}
}
