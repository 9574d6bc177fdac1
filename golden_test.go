package sugarsurvey

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sugarsurvey/internal/analysis"
)

// Golden test format. Every table listed must match row for row, in emission
// order; tables not listed must be empty. Only the listed fields are compared.
type goldenFile struct {
	Tables map[string][]goldenRow `json:"tables"`
}

type goldenRow struct {
	Line   int            `json:"line"`
	Fields map[string]any `json:"fields"`
}

// TestGolden classifies testdata/rust/{case}/lib.rs and compares the result
// with testdata/rust/{case}/golden.json.
func TestGolden(t *testing.T) {
	root := filepath.Join("testdata", "rust")
	cases, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join(root, c.Name())
		goldenPath := filepath.Join(dir, "golden.json")
		srcPath := filepath.Join(dir, "lib.rs")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		t.Run(c.Name(), func(t *testing.T) {
			runGoldenTest(t, srcPath, goldenPath)
		})
	}
}

func runGoldenTest(t *testing.T, srcPath, goldenPath string) {
	t.Helper()

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(data, &golden))

	out, err := ClassifyFile(context.Background(), srcPath, analysis.Default())
	require.NoError(t, err)

	actual := make(map[string][]goldenRow)
	for _, c := range out {
		actual[c.Table] = append(actual[c.Table], goldenRow{Line: c.Line, Fields: normalize(t, c.Fields)})
	}

	for _, table := range analysis.Default().Tables() {
		want := golden.Tables[table]
		got := actual[table]
		if !assert.Len(t, got, len(want), "rows in %s", table) {
			continue
		}
		for i, exp := range want {
			assert.Equal(t, exp.Line, got[i].Line, "%s[%d] line", table, i)
			for k, v := range exp.Fields {
				assert.Equal(t, v, got[i].Fields[k], "%s[%d].%s", table, i, k)
			}
		}
	}
}

// normalize round-trips fields through JSON so numbers compare as float64
// like the decoded golden values.
func normalize(t *testing.T, fields map[string]any) map[string]any {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}
