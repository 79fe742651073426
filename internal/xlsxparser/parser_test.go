package xlsxparser

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gradesum/internal/testutil"
)

func TestReadRows_RawValues(t *testing.T) {
	data := testutil.Workbook(t,
		[]interface{}{"title"},
		[]interface{}{"registry", "grade"},
		[]interface{}{"2023001234", 7.5},
		[]interface{}{"19", 10},
	)

	rows, err := ReadRows(bytes.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"title"},
		{"registry", "grade"},
		{"2023001234", "7.5"},
		{"19", "10"},
	}, rows)
}

func TestReadRows_NotAWorkbook(t *testing.T) {
	_, err := ReadRows(bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.xlsx")
	require.NoError(t, os.WriteFile(path, testutil.Workbook(t, []interface{}{"a", "b"}), 0644))

	rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestIsRowEmpty(t *testing.T) {
	assert.True(t, IsRowEmpty(nil))
	assert.True(t, IsRowEmpty([]string{"", ""}))
	assert.False(t, IsRowEmpty([]string{"", "x"}))
}
