package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-styler/internal/apperr"
	"photo-styler/internal/config"
	"photo-styler/internal/gemini"
	"photo-styler/internal/media"
)

type fakeBackend struct {
	failOn string
	seen   []string
}

func (f *fakeBackend) Generate(_ context.Context, img media.Encoded, instruction string) (media.Encoded, error) {
	f.seen = append(f.seen, instruction)
	if instruction == f.failOn {
		return media.Encoded{}, apperr.New(apperr.KindContentBlocked, "test", "")
	}
	return media.Encoded{Data: base64.StdEncoding.EncodeToString([]byte("out-" + instruction)), MimeType: media.MimePNG}, nil
}

func useBackend(t *testing.T, b gemini.Backend) {
	t.Helper()
	prev := newGenerator
	newGenerator = func(context.Context, config.Config, *slog.Logger) (gemini.Backend, error) { return b, nil }
	t.Cleanup(func() { newGenerator = prev })
}

func writeFixtures(t *testing.T) (imagePath, catalogPath string) {
	t.Helper()
	dir := t.TempDir()

	imagePath = filepath.Join(dir, "me.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\nfake"), 0o644))

	catalogPath = filepath.Join(dir, "styles.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`version: 1
styles:
  - style: Official
    instruction: instrA
  - style: Formal Suit
    instruction: instrB
`), 0o644))
	return imagePath, catalogPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunWritesEveryStyle(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	backend := &fakeBackend{}
	useBackend(t, backend)
	imagePath, catalogPath := writeFixtures(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "run", "--image", imagePath, "--out", outDir, "--catalog", catalogPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"instrA", "instrB"}, backend.seen)
	assert.Contains(t, out, `[1/2] Generating "Official" style...`)
	assert.Contains(t, out, `[2/2] Generating "Formal Suit" style...`)
	assert.Contains(t, out, "done: 2 styles written")

	data, err := os.ReadFile(filepath.Join(outDir, "linkedin-photo-official.png"))
	require.NoError(t, err)
	assert.Equal(t, "out-instrA", string(data))
	_, err = os.Stat(filepath.Join(outDir, "linkedin-photo-formal-suit.png"))
	assert.NoError(t, err)
}

func TestRunStopsAtFirstFailureAndKeepsEarlierFiles(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	useBackend(t, &fakeBackend{failOn: "instrB"})
	imagePath, catalogPath := writeFixtures(t)
	outDir := t.TempDir()

	out, err := execute(t, "run", "--image", imagePath, "--out", outDir, "--catalog", catalogPath)
	require.Error(t, err)
	assert.Equal(t, apperr.MsgContentBlocked, err.Error())
	assert.Contains(t, out, "1 of 2 styles finished")

	_, err = os.Stat(filepath.Join(outDir, "linkedin-photo-official.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "linkedin-photo-formal-suit.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRejectsInvalidImage(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	backend := &fakeBackend{}
	useBackend(t, backend)

	path := filepath.Join(t.TempDir(), "anim.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a"), 0o644))

	_, err := execute(t, "run", "--image", path, "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, apperr.MsgInvalidType, err.Error())
	assert.Empty(t, backend.seen)
}

func TestRunRequiresImageFlag(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	_, err := execute(t, "run")
	assert.ErrorContains(t, err, `required flag(s) "image" not set`)
}

func TestStylesPrintsCatalog(t *testing.T) {
	t.Setenv("STYLE_CATALOG_FILE", "")

	out, err := execute(t, "styles")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Official\n")
	assert.Contains(t, out, "4. Casual\n")

	_, catalogPath := writeFixtures(t)
	out, err = execute(t, "styles", "--catalog", catalogPath)
	require.NoError(t, err)
	assert.Equal(t, "1. Official\n   instrA\n2. Formal Suit\n   instrB\n", out)
}
