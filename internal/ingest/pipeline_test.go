package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/backend/internal/models"
	"github.com/codeatlas/backend/internal/parser"
)

type fakeIngestor struct {
	mu      sync.Mutex
	records []*models.ParsedFile
}

func (f *fakeIngestor) Ingest(_ context.Context, parsed *models.ParsedFile) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, parsed)
	return len(parsed.Entities), nil
}

func (f *fakeIngestor) byPath(path string) *models.ParsedFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.OriginalPath == path {
			return r
		}
	}
	return nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPipelineRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/auth.py", "import os\n\ndef login():\n    pass\n")
	writeFile(t, root, "lib/list.c", "#include <stdio.h>\n\nint main(void) { return 0; }\n")
	writeFile(t, root, "node_modules/dep/index.js", "function skipped() {}\n")
	writeFile(t, root, ".git/config", "[core]\n")

	ingestor := &fakeIngestor{}
	pipeline := NewPipeline(parser.New(nil, nil), ingestor, nil)

	result, err := pipeline.Run(context.Background(), "repo-1", root)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.EntitiesFound, 0)

	authRecord := ingestor.byPath("src/auth.py")
	require.NotNil(t, authRecord)
	assert.Equal(t, "repo-1", authRecord.RepoID)
	assert.Equal(t, "auth.py", authRecord.Filename)
	assert.Equal(t, "python", authRecord.Language)
	assert.NotEmpty(t, authRecord.Entities)

	// Skipped directories never reach the ingestor.
	assert.Nil(t, ingestor.byPath("node_modules/dep/index.js"))
	assert.Nil(t, ingestor.byPath(".git/config"))
}

func TestPipelineRunEmptyDir(t *testing.T) {
	ingestor := &fakeIngestor{}
	pipeline := NewPipeline(parser.New(nil, nil), ingestor, nil)

	result, err := pipeline.Run(context.Background(), "repo-1", t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, result.FilesProcessed)
	assert.Empty(t, ingestor.records)
}

func TestPipelineDecodesLegacyEncoding(t *testing.T) {
	root := t.TempDir()
	// Latin-1 bytes in a source comment.
	content := append([]byte("# caf"), 0xE9, '\n')
	content = append(content, []byte("def serve():\n    pass\n")...)
	require.NoError(t, os.WriteFile(filepath.Join(root, "menu.py"), content, 0644))

	ingestor := &fakeIngestor{}
	pipeline := NewPipeline(parser.New(nil, nil), ingestor, nil)

	result, err := pipeline.Run(context.Background(), "repo-1", root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)

	record := ingestor.byPath("menu.py")
	require.NotNil(t, record)
	found := false
	for _, e := range record.Entities {
		if e.Properties.GetString("original_name") == "serve" {
			found = true
		}
	}
	assert.True(t, found, "expected serve function to be extracted")
}
