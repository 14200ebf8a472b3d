package styler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
	"photo-styler/internal/style"
)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  []string
	failAt int // 0-based call index that fails; -1 never
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, img media.Encoded, instruction string) (media.Encoded, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.calls)
	f.calls = append(f.calls, instruction)
	if idx == f.failAt {
		return media.Encoded{}, f.err
	}
	return media.Encoded{Data: "img-" + instruction, MimeType: media.MimePNG}, nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "r" + strconv.Itoa(n)
	}
}

func catalogOf(n int) style.Catalog {
	c := make(style.Catalog, 0, n)
	for i := 0; i < n; i++ {
		c = append(c, style.Instruction{Style: fmt.Sprintf("S%d", i), Instruction: fmt.Sprintf("instr%d", i)})
	}
	return c
}

var input = media.Encoded{Data: "cGhvdG8=", MimeType: media.MimeJPEG}

func TestRunProducesOneResultPerStyleInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 4, 7} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			gen := &fakeGenerator{failAt: -1}
			o := New(Options{Generator: gen, NewID: sequentialIDs()})
			catalog := catalogOf(n)

			results, err := o.Run(context.Background(), input, catalog, nil)
			require.NoError(t, err)
			require.Len(t, results, n)
			for i, r := range results {
				assert.Equal(t, catalog[i].Style, r.Style)
				assert.Equal(t, catalog[i].Instruction, r.Instruction)
				assert.Equal(t, "img-"+catalog[i].Instruction, r.Image.Data)
			}
			assert.Equal(t, catalog.Len(), len(gen.calls))
		})
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	for k := 0; k < 4; k++ {
		t.Run(strconv.Itoa(k), func(t *testing.T) {
			gen := &fakeGenerator{failAt: k, err: apperr.New(apperr.KindNoImageReturned, "test", "")}
			o := New(Options{Generator: gen})

			results, err := o.Run(context.Background(), input, catalogOf(4), nil)
			require.Error(t, err)
			assert.Equal(t, apperr.KindNoImageReturned, apperr.KindOf(err))
			assert.Len(t, results, k)
			assert.Len(t, gen.calls, k+1, "no style after the failing one is attempted")
		})
	}
}

func TestRunClassifiesPlainErrors(t *testing.T) {
	gen := &fakeGenerator{failAt: 0, err: errors.New("socket closed")}
	_, err := New(Options{Generator: gen}).Run(context.Background(), input, catalogOf(2), nil)

	assert.Equal(t, apperr.KindGenerationFailed, apperr.KindOf(err))
	assert.Equal(t, apperr.MsgGenerationFailed, apperr.UserMessage(err))
}

func TestRunSnapshotsAreMonotonic(t *testing.T) {
	var snaps []Snapshot
	o := New(Options{Generator: &fakeGenerator{failAt: -1}})

	_, err := o.Run(context.Background(), input, catalogOf(3), func(s Snapshot) { snaps = append(snaps, s) })
	require.NoError(t, err)
	require.Len(t, snaps, 6)

	prev := 0
	for _, s := range snaps {
		assert.GreaterOrEqual(t, s.Completed, prev)
		assert.Equal(t, s.Completed, len(s.Results))
		assert.Equal(t, 3, s.Total)
		prev = s.Completed
	}
}

func TestRunScenarioTwoStyles(t *testing.T) {
	catalog := style.Catalog{
		{Style: "Official", Instruction: "instrA"},
		{Style: "Casual", Instruction: "instrB"},
	}
	var counts []int
	var messages []string
	o := New(Options{Generator: &fakeGenerator{failAt: -1}, NewID: sequentialIDs()})

	results, err := o.Run(context.Background(), input, catalog, func(s Snapshot) {
		counts = append(counts, s.Completed)
		messages = append(messages, s.Message)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 1, 2}, counts)
	assert.Equal(t, `Generating "Official" style...`, messages[0])
	assert.Equal(t, `Generating "Casual" style...`, messages[2])
	require.Len(t, results, 2)
	assert.Equal(t, Result{ID: "r1", Style: "Official", Instruction: "instrA", Image: media.Encoded{Data: "img-instrA", MimeType: media.MimePNG}}, results[0])
	assert.Equal(t, "r2", results[1].ID)
}

func TestRunEmptyCatalog(t *testing.T) {
	called := false
	gen := &fakeGenerator{failAt: -1}
	results, err := New(Options{Generator: gen}).Run(context.Background(), input, nil, func(Snapshot) { called = true })

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
	assert.Empty(t, gen.calls)
}

func TestSnapshotResultsAreCopies(t *testing.T) {
	var first Snapshot
	o := New(Options{Generator: &fakeGenerator{failAt: -1}})
	results, err := o.Run(context.Background(), input, catalogOf(2), func(s Snapshot) {
		if s.Completed == 1 && first.Results == nil {
			first = s
		}
	})
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	first.Results[0].Style = "changed"
	assert.Equal(t, "S0", results[0].Style)
}

func TestRunWithoutGenerator(t *testing.T) {
	results, err := New(Options{}).Run(context.Background(), input, catalogOf(1), nil)
	assert.Empty(t, results)
	assert.True(t, apperr.IsKind(err, apperr.KindGenerationFailed))
}

func TestResultHelpers(t *testing.T) {
	r := Result{Style: "Formal Suit", Image: media.Encoded{Data: "QQ==", MimeType: media.MimePNG}}
	assert.Equal(t, "data:image/png;base64,QQ==", r.URL())
	assert.Equal(t, "linkedin-photo-formal-suit.png", r.DownloadName())

	assert.Equal(t, 50.0, Snapshot{Completed: 2, Total: 4}.Percent())
	assert.Equal(t, 0.0, Snapshot{}.Percent())
}
