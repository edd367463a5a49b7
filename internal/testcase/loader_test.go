package testcase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm/internal/tcerr"
)

const selectCard = `id: TC001
description: Card select
tags: [smoke, apdu]
test_sequences:
  - id: 1
    name: Select
    tags: [regression, smoke]
    steps:
      - step: 1
        description: send select
        command: echo "SW=0x9000"
        capture_vars:
          - name: SW
            capture: 'SW=(0x[0-9A-F]{4})'
        verification:
          result: '[[ $? -eq 0 ]]'
          general:
            - name: sw_ok
              condition: '[[ "$SW" == "0x9000" ]]'
        expected:
          success: true
          result: "0"
          output: "SW=*"
      - step: 3
        description: insert card
        manual: true
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile_ParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tc001.yaml", selectCard)

	tc, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "TC001", tc.ID)
	assert.Equal(t, path, tc.SourcePath)
	require.Len(t, tc.Sequences, 1)

	steps := tc.Sequences[0].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, `echo "SW=0x9000"`, steps[0].Command)
	require.Len(t, steps[0].CaptureVars, 1)
	assert.Equal(t, "SW", steps[0].CaptureVars[0].Name)
	require.NotNil(t, steps[0].Verification)
	assert.Equal(t, "sw_ok", steps[0].Verification.General[0].Name)
	require.NotNil(t, steps[0].Expected.Success)
	assert.True(t, *steps[0].Expected.Success)
	assert.Equal(t, "SW=*", steps[0].Expected.Output)

	assert.Equal(t, 3, steps[1].Step)
	assert.True(t, steps[1].Manual)
	assert.Nil(t, steps[1].Expected.Success)
}

func TestTestCase_EffectiveTags(t *testing.T) {
	dir := t.TempDir()
	tc, err := LoadFile(writeFile(t, dir, "tc.yaml", selectCard))
	require.NoError(t, err)

	assert.Equal(t, []string{"smoke", "apdu", "regression"}, tc.EffectiveTags())

	automated, manual := tc.StepCount()
	assert.Equal(t, 1, automated)
	assert.Equal(t, 1, manual)
	assert.True(t, tc.HasCaptures())
}

func TestStore_LoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b/tc002.yml", "id: TC002\ntest_sequences:\n  - id: 1\n    steps:\n      - step: 1\n        command: \"true\"\n")
	writeFile(t, dir, "tc001.yaml", selectCard)
	writeFile(t, dir, "tcm.yaml", "workers: 2\n")
	writeFile(t, dir, "notes.txt", "not yaml")
	writeFile(t, dir, ".hidden/tc003.yaml", "id: TC003\ntest_sequences:\n  - id: 1\n    steps: []\n")

	all, err := NewStore(dir).LoadAll()
	require.NoError(t, err)

	require.Len(t, all, 2)
	assert.Equal(t, "TC001", all[0].ID)
	assert.Equal(t, "TC002", all[1].ID)
}

func TestStore_LoadAllErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "duplicate ids",
			files: map[string]string{
				"a.yaml": selectCard,
				"b.yaml": selectCard,
			},
		},
		{
			name: "invalid yaml",
			files: map[string]string{
				"a.yaml": "id: [unterminated",
			},
		},
		{
			name: "missing sequences",
			files: map[string]string{
				"a.yaml": "id: TC009\n",
			},
		},
		{
			name: "duplicate sequence ids",
			files: map[string]string{
				"a.yaml": "id: TC010\ntest_sequences:\n  - id: 1\n    steps: []\n  - id: 1\n    steps: []\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := NewStore(dir).LoadAll()
			require.Error(t, err)
			assert.True(t, tcerr.IsConfiguration(err), "expected configuration error, got %v", err)
		})
	}
}

func TestStore_Find(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nested/select.yaml", selectCard)
	writeFile(t, dir, "TC002.yaml", "id: TC002\ntest_sequences:\n  - id: 1\n    steps: []\n")

	store := NewStore(dir)

	tc, err := store.Find("TC002")
	require.NoError(t, err)
	assert.Equal(t, "TC002", tc.ID)

	tc, err = store.Find("TC001")
	require.NoError(t, err)
	assert.Equal(t, "Card select", tc.Description)

	_, err = store.Find("TC404")
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.CodeTestCaseNotFound))
}

func TestStore_MissingRoot(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing")).LoadAll()
	require.Error(t, err)
	assert.True(t, tcerr.IsConfiguration(err))
}
