package store

import (
	"database/sql"
	"errors"
	"image"
	"time"
)

// Capture is the stored record of one completed photo.
type Capture struct {
	ID        string          `json:"id"`
	Path      string          `json:"path"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Crop      image.Rectangle `json:"crop"`
	SizeBytes int64           `json:"size_bytes"`
	TakenAt   time.Time       `json:"taken_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// CaptureRepository provides CRUD operations for captures.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

const captureColumns = `id, path, width, height, crop_x, crop_y, crop_w, crop_h, size_bytes, taken_at, created_at`

// Create inserts a new capture.
func (r *CaptureRepository) Create(c *Capture) error {
	c.CreatedAt = time.Now().UTC()
	if c.TakenAt.IsZero() {
		c.TakenAt = c.CreatedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO captures (`+captureColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Path, c.Width, c.Height,
		c.Crop.Min.X, c.Crop.Min.Y, c.Crop.Dx(), c.Crop.Dy(),
		c.SizeBytes, c.TakenAt.UTC(), c.CreatedAt,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(row scanner) (*Capture, error) {
	c := &Capture{}
	var x, y, w, h int
	err := row.Scan(&c.ID, &c.Path, &c.Width, &c.Height, &x, &y, &w, &h, &c.SizeBytes, &c.TakenAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Crop = image.Rect(x, y, x+w, y+h)
	return c, nil
}

// GetByID retrieves a capture by its ID.
func (r *CaptureRepository) GetByID(id string) (*Capture, error) {
	c, err := scanCapture(r.db.QueryRow(`SELECT `+captureColumns+` FROM captures WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns the most recent captures first. limit <= 0 returns all.
func (r *CaptureRepository) List(limit int) ([]*Capture, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+captureColumns+` FROM captures ORDER BY taken_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return captures, nil
}

// Count returns how many captures are stored.
func (r *CaptureRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&n)
	return n, err
}

// Delete removes a capture by its ID.
func (r *CaptureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
