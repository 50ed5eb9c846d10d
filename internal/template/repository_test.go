package template

import (
	"bytes"
	"database/sql"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	r, err := OpenRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func builtinFont(t *testing.T, r *Repository, name string) Font {
	t.Helper()
	fonts, err := r.ListFonts()
	require.NoError(t, err)
	for _, f := range fonts {
		if f.BuiltinName == name {
			return f
		}
	}
	t.Fatalf("builtin font %q not seeded", name)
	return Font{}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func aTemplate(t *testing.T, r *Repository) *Template {
	return &Template{
		Uuid:      uuid.New(),
		Name:      "shelf label",
		CreatedAt: time.Now().UTC(),
		MinSize:   64,
		MaxSize:   400,
		Parameters: []Parameter{
			{Name: "serial", MaxLength: 16},
		},
		Images: []Image{
			{Image: pngBytes(t), X: 0, Y: 0, Width: 32, Height: 32},
		},
		Texts: []Text{
			{Text: "SN {serial}", X: 0, Y: 40, Width: 120, Height: 60,
				FontSize: 16, Font: builtinFont(t, r, "goregular")},
		},
	}
}

func TestSchemaSeedsBuiltinFonts(t *testing.T) {
	r := openTestRepository(t)

	fonts, err := r.ListFonts()
	require.NoError(t, err)
	require.Len(t, fonts, 2)

	f, err := r.GetFont(fonts[0].Uuid)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, fonts[0].BuiltinName, f.BuiltinName)
}

func TestGetFontUnknownUuid(t *testing.T) {
	r := openTestRepository(t)
	f, err := r.GetFont(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestCreateAndGetTemplate(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)

	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))
	assert.NotZero(t, tpl.Id)

	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "shelf label", got.Name)
	assert.Equal(t, 64, got.MinSize)
	require.Len(t, got.Parameters, 1)
	assert.Equal(t, "serial", got.Parameters[0].Name)
	require.Len(t, got.Images, 1)
	assert.Equal(t, 32, got.Images[0].Width)
	require.Len(t, got.Texts, 1)
	assert.Equal(t, "SN {serial}", got.Texts[0].Text)
	assert.Equal(t, "goregular", got.Texts[0].Font.BuiltinName)
}

func TestGetUnknownTemplateIsNil(t *testing.T) {
	r := openTestRepository(t)

	got, err := r.Get(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	exists, err := r.Exists(uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListTemplates(t *testing.T) {
	r := openTestRepository(t)

	for range 3 {
		tpl := aTemplate(t, r)
		require.NoError(t, r.Transact(func(tx *sql.Tx) error {
			return r.Create(tx, tpl)
		}))
	}

	templates, err := r.List()
	require.NoError(t, err)
	assert.Len(t, templates, 3)
}

func TestUpdateTemplateReplacesChildren(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))

	updated := aTemplate(t, r)
	updated.Name = "renamed"
	updated.Parameters = nil
	updated.Texts = append(updated.Texts, Text{
		Text: "second", X: 0, Y: 100, Width: 100, Height: 30,
		FontSize: 12, Font: builtinFont(t, r, "gomono"),
	})
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Update(tx, tpl.Uuid, updated)
	}))

	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "renamed", got.Name)
	assert.Empty(t, got.Parameters)
	assert.Len(t, got.Texts, 2)
}

func TestUpdateUnknownTemplateFails(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	err := r.Transact(func(tx *sql.Tx) error {
		return r.Update(tx, uuid.New(), tpl)
	})
	assert.Error(t, err)
}

func TestDeleteUnknownTemplateFails(t *testing.T) {
	r := openTestRepository(t)
	err := r.Transact(func(tx *sql.Tx) error {
		return r.Delete(tx, uuid.New())
	})
	assert.Error(t, err)
}

// The pool holds a single connection, so reads made while Update or Delete
// run inside a transaction must use that transaction; querying the pool
// instead would block forever. Back-to-back transactional writes with pool
// reads in between catch any regression to that.
func TestUpdateAndDeleteDoNotExhaustPool(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))

	for range 3 {
		updated := aTemplate(t, r)
		require.NoError(t, r.Transact(func(tx *sql.Tx) error {
			return r.Update(tx, tpl.Uuid, updated)
		}))
		exists, err := r.Exists(tpl.Uuid)
		require.NoError(t, err)
		require.True(t, exists)
	}

	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Delete(tx, tpl.Uuid)
	}))
	exists, err := r.Exists(tpl.Uuid)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteTemplate(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))

	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Delete(tx, tpl.Uuid)
	}))

	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactRollsBackOnError(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)

	err := r.Transact(func(tx *sql.Tx) error {
		if err := r.Create(tx, tpl); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	exists, err := r.Exists(tpl.Uuid)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenderTemplate(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))

	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)

	img, err := Render(got, map[string]string{"serial": "X100"})
	require.NoError(t, err)
	assert.Equal(t, deviceWidth, img.Bounds().Dx())
	assert.GreaterOrEqual(t, img.Bounds().Dy(), got.MinSize)
}

func TestRenderMissingParameter(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))
	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)

	_, err = Render(got, map[string]string{})
	assert.Error(t, err)
}

func TestRenderParameterTooLong(t *testing.T) {
	r := openTestRepository(t)
	tpl := aTemplate(t, r)
	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		return r.Create(tx, tpl)
	}))
	got, err := r.Get(tpl.Uuid)
	require.NoError(t, err)

	_, err = Render(got, map[string]string{"serial": "this serial number is much too long"})
	assert.Error(t, err)
}

func TestForDeviceProducesBilevel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}

	p := ForDevice(img)
	require.Len(t, p.Palette, 2)
	assert.Equal(t, 64, p.Bounds().Dx())

	seen := map[uint8]bool{}
	for _, idx := range p.Pix {
		seen[idx] = true
	}
	assert.True(t, seen[0] && seen[1], "dithered gradient should use both palette entries")
}
