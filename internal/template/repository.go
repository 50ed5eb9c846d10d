package template

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository persists templates and fonts in sqlite. All writes go through
// Transact so multi-table updates stay atomic.
type Repository struct {
	Db *sql.DB
}

func (r *Repository) Close() error {
	return r.Db.Close()
}

// querier abstracts over the pool and an open transaction. The pool is
// capped at one connection, so any read made while a transaction is open
// must go through that transaction or it will block on the pool forever.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (r *Repository) readTemplateBase(q querier, u uuid.UUID) (*Template, error) {
	row := q.QueryRow(`
		SELECT id, name, created_at, landscape, min_size, max_size
		FROM template
		WHERE uuid = ?`, u.String())

	t := Template{Uuid: u}
	if err := row.Scan(&t.Id, &t.Name, &t.CreatedAt, &t.Landscape, &t.MinSize, &t.MaxSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read template:\n%w", err)
	}

	return &t, nil
}

func (r *Repository) ListFonts() ([]Font, error) {
	rows, err := r.Db.Query(`
		SELECT uuid, name, builtin_name, font_data
		FROM font`)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	fonts := []Font{}
	for rows.Next() {
		f := Font{}
		var uuidString string
		if err := rows.Scan(&uuidString, &f.Name, &f.BuiltinName, &f.FontData); err != nil {
			return nil, fmt.Errorf("Row scanning failed:\n%w", err)
		}
		f.Uuid = uuid.MustParse(uuidString)
		fonts = append(fonts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}

	return fonts, nil
}

func (r *Repository) GetFont(u uuid.UUID) (*Font, error) {
	row := r.Db.QueryRow(`
		SELECT uuid, name, builtin_name, font_data
		FROM font
		WHERE uuid = ?`, u.String())

	var f Font
	var uuidString string
	if err := row.Scan(&uuidString, &f.Name, &f.BuiltinName, &f.FontData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read font:\n%w", err)
	}
	f.Uuid = uuid.MustParse(uuidString)

	return &f, nil
}

func (r *Repository) List() ([]Template, error) {
	rows, err := r.Db.Query(`
		SELECT uuid, id, name, created_at, landscape, min_size, max_size
		FROM template
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		t := Template{}
		var uuidString string
		if err := rows.Scan(&uuidString, &t.Id, &t.Name, &t.CreatedAt, &t.Landscape, &t.MinSize, &t.MaxSize); err != nil {
			return nil, fmt.Errorf("Row scanning failed:\n%w", err)
		}
		t.Uuid = uuid.MustParse(uuidString)
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}

	return templates, nil
}

func (r *Repository) Exists(u uuid.UUID) (bool, error) {
	t, err := r.readTemplateBase(r.Db, u)
	if err != nil {
		return false, err
	}
	return t != nil, nil
}

func (r *Repository) Get(u uuid.UUID) (*Template, error) {
	t, err := r.readTemplateBase(r.Db, u)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	t.Parameters = []Parameter{}
	if err := queryAndScanRows(r.Db, `
		SELECT id, name, max_length
		FROM template_parameter
		WHERE template_id = ?`, t.Id, &t.Parameters, func(r *sql.Rows, x *Parameter) error {
		return r.Scan(&x.Id, &x.Name, &x.MaxLength)
	}); err != nil {
		return nil, fmt.Errorf("Failed to read parameters for template:\n%w", err)
	}

	t.Images = []Image{}
	if err := queryAndScanRows(r.Db, `
		SELECT id, image, x, y, width, height
		FROM template_image
		WHERE template_id = ?`, t.Id, &t.Images, func(r *sql.Rows, i *Image) error {
		return r.Scan(&i.Id, &i.Image, &i.X, &i.Y, &i.Width, &i.Height)
	}); err != nil {
		return nil, fmt.Errorf("Failed to read child images for template:\n%w", err)
	}

	t.Texts = []Text{}
	if err := queryAndScanRows(r.Db, `
		SELECT t.id, t.text, t.x, t.y, t.width, t.height, t.font_size,
		       f.uuid, f.name, f.builtin_name, f.font_data
		FROM template_text t
		JOIN font f ON f.id = t.font_id
		WHERE t.template_id = ?`, t.Id, &t.Texts, func(r *sql.Rows, i *Text) error {
		var uuidString string
		err := r.Scan(
			&i.Id, &i.Text, &i.X, &i.Y, &i.Width, &i.Height, &i.FontSize,
			&uuidString, &i.Font.Name, &i.Font.BuiltinName, &i.Font.FontData)
		if err != nil {
			return err
		}
		i.Font.Uuid = uuid.MustParse(uuidString)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("Failed to read child texts for template:\n%w", err)
	}

	return t, nil
}

func queryAndScanRows[T any](db *sql.DB, query string, id int, results *[]T, scanRow func(*sql.Rows, *T) error) error {
	rows, err := db.Query(query, id)
	if err != nil {
		return fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item T
		if err := scanRow(rows, &item); err != nil {
			return fmt.Errorf("Row scanning failed:\n%w", err)
		}
		*results = append(*results, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("Error iterating rows:\n%w", err)
	}

	return nil
}

// Transact runs operations in a transaction, committing afterward, or
// rolling back if the passed function returns an error.
func (r *Repository) Transact(f func(*sql.Tx) error) error {
	tx, err := r.Db.Begin()
	if err != nil {
		return err
	}

	if err := f(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return fmt.Errorf("Failed to roll back transaction: %w\n\nAfter handling: %v", err2, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Failed to commit transaction:\n%w", err)
	}
	return nil
}

func (r *Repository) Create(tx *sql.Tx, t *Template) error {
	row := tx.QueryRow(`
		INSERT INTO template(uuid, name, created_at, landscape, min_size, max_size)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`, t.Uuid.String(), t.Name, t.CreatedAt, t.Landscape, t.MinSize, t.MaxSize)
	if err := row.Scan(&t.Id); err != nil {
		return fmt.Errorf("Failed to insert into template:\n%w", err)
	}

	return r.insertChildren(tx, t)
}

func (r *Repository) Update(tx *sql.Tx, u uuid.UUID, t *Template) error {
	tFromDb, err := r.readTemplateBase(tx, u)
	if err != nil {
		return err
	}
	if tFromDb == nil {
		return fmt.Errorf("No template with UUID %s", u.String())
	}

	t.Id = tFromDb.Id
	t.Uuid = u
	if err := r.deleteChildren(tx, t.Id); err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE template SET name = ?, landscape = ?, min_size = ?, max_size = ?
		WHERE id = ?`,
		t.Name, t.Landscape, t.MinSize, t.MaxSize, t.Id)
	if err != nil {
		return fmt.Errorf("Couldn't update template data:\n%w", err)
	}
	return r.insertChildren(tx, t)
}

func (r *Repository) Delete(tx *sql.Tx, u uuid.UUID) error {
	t, err := r.readTemplateBase(tx, u)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("No template with UUID %s", u.String())
	}
	if err := r.deleteChildren(tx, t.Id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM template WHERE id = ?`, t.Id); err != nil {
		return fmt.Errorf("Failed to delete template:\n%w", err)
	}
	return nil
}

func (r *Repository) deleteChildren(tx *sql.Tx, templateId int) error {
	for n, q := range []string{
		"DELETE FROM template_parameter WHERE template_id = ?",
		"DELETE FROM template_image WHERE template_id = ?",
		"DELETE FROM template_text WHERE template_id = ?",
	} {
		if _, err := tx.Exec(q, templateId); err != nil {
			return fmt.Errorf("Error running statement #%d:\n%w", n+1, err)
		}
	}
	return nil
}

func (r *Repository) insertChildren(tx *sql.Tx, t *Template) error {
	pStmt, err := tx.Prepare(`
		INSERT INTO template_parameter(template_id, name, max_length)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Failed to prepare statement to insert template parameter:\n%w", err)
	}
	defer pStmt.Close()
	for i, p := range t.Parameters {
		if _, err := pStmt.Exec(t.Id, p.Name, p.MaxLength); err != nil {
			return fmt.Errorf("Failed to insert parameter %v of template:\n%w", i, err)
		}
	}

	iStmt, err := tx.Prepare(`
		INSERT INTO template_image(template_id, image, x, y, width, height)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Failed to prepare statement to insert template image:\n%w", err)
	}
	defer iStmt.Close()
	for i, img := range t.Images {
		if _, err := iStmt.Exec(t.Id, img.Image, img.X, img.Y, img.Width, img.Height); err != nil {
			return fmt.Errorf("Failed to insert image %v of template:\n%w", i, err)
		}
	}

	tStmt, err := tx.Prepare(`
		INSERT INTO template_text(template_id, text, x, y, width, height, font_size, font_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT id FROM font WHERE uuid = ?))`)
	if err != nil {
		return fmt.Errorf("Failed to prepare statement to insert template text:\n%w", err)
	}
	defer tStmt.Close()
	for i, txt := range t.Texts {
		if _, err := tStmt.Exec(t.Id,
			txt.Text, txt.X, txt.Y, txt.Width, txt.Height,
			txt.FontSize, txt.Font.Uuid.String()); err != nil {
			return fmt.Errorf("Failed to insert text %v of template:\n%w", i, err)
		}
	}

	return nil
}
