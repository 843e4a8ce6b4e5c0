package editor

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		content  string
		expected []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"\n\n\n", []int{0, 1, 2, 3}},
		{"line1\nline2\nline3", []int{0, 6, 12}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, computeLineOffsets(tt.content), "content %q", tt.content)
	}
}

func TestDocument_Positions(t *testing.T) {
	doc := NewDocument("file:///q.sql", "SELECT 1\nFROM t\nWHERE x", 1)

	tests := []struct {
		name   string
		pos    Position
		offset int
	}{
		{"start", Position{0, 0}, 0},
		{"second line", Position{1, 2}, 11},
		{"past line end clamps", Position{0, 50}, 8},
		{"past last line", Position{9, 0}, len(doc.Content)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, doc.PositionToOffset(tt.pos))
		})
	}

	assert.Equal(t, Position{Line: 1, Character: 2}, doc.OffsetToPosition(11))
	assert.Equal(t, Position{Line: 2, Character: 7}, doc.OffsetToPosition(1000))
	assert.Equal(t, 3, doc.LineCount())
}

func TestDocument_PositionsCountUTF16Units(t *testing.T) {
	doc := NewDocument("file:///q.sql", "SELECT 'é😀' AS s\nSELECT 2", 1)

	tests := []struct {
		name   string
		pos    Position
		offset int
	}{
		{"before two-byte rune", Position{0, 8}, 8},
		{"after two-byte rune", Position{0, 9}, 10},
		{"inside surrogate pair", Position{0, 10}, 10},
		{"after surrogate pair", Position{0, 11}, 14},
		{"past line end clamps", Position{0, 99}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, doc.PositionToOffset(tt.pos))
		})
	}

	assert.Equal(t, "'é😀'", doc.TextInRange(Range{Start: Position{0, 7}, End: Position{0, 12}}))
	assert.Equal(t, Position{Line: 0, Character: 11}, doc.OffsetToPosition(14))
}

func TestDocument_TextInRange(t *testing.T) {
	doc := NewDocument("file:///q.sql", "SELECT 1;\nSELECT 2;\n", 1)

	assert.Equal(t, "SELECT 2;", doc.TextInRange(Range{Start: Position{1, 0}, End: Position{1, 9}}))
	assert.Equal(t, "SELECT 1;\n", doc.TextInRange(Range{Start: Position{0, 0}, End: Position{1, 0}}))
	assert.Empty(t, doc.TextInRange(Range{Start: Position{1, 4}, End: Position{1, 4}}))
	assert.Empty(t, doc.TextInRange(Range{Start: Position{1, 4}, End: Position{0, 1}}))
}

func TestDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///test/model.sql"

	store.Open(uri, "SELECT 1", 1)
	before := store.Get(uri)
	require.NotNil(t, before)

	store.Update(uri, "SELECT 2\nFROM t", 2)
	after := store.Get(uri)
	assert.Equal(t, "SELECT 2\nFROM t", after.Content)
	assert.Equal(t, 2, after.Version)
	assert.Equal(t, []int{0, 9}, after.Lines)
	assert.Equal(t, "SELECT 1", before.Content, "earlier snapshot is not modified")

	store.Update("file:///unknown.sql", "x", 1)
	assert.Nil(t, store.Get("file:///unknown.sql"))

	store.Open("file:///a.sql", "", 1)
	assert.Equal(t, []string{"file:///a.sql", uri}, store.List())

	store.Close(uri)
	assert.Nil(t, store.Get(uri))
}

func TestURIConversion(t *testing.T) {
	assert.Equal(t, "/tmp/my queries/q.sql", URIToPath("file:///tmp/my%20queries/q.sql"))
	assert.Equal(t, "untitled:1", URIToPath("untitled:1"))
	assert.Equal(t, "file:///tmp/my%20queries/q.sql", PathToURI("/tmp/my queries/q.sql"))
	assert.Equal(t, "file:///x.sql", PathToURI("file:///x.sql"))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		input   string
		want    Range
		wantErr string
	}{
		{input: "1:8-1:16", want: Range{Start: Position{0, 7}, End: Position{0, 15}}},
		{input: "2-3", want: Range{Start: Position{1, 0}, End: Position{3, 0}}},
		{input: " 4 - 4 ", want: Range{Start: Position{3, 0}, End: Position{4, 0}}},
		{input: "3", wantErr: "expected START-END"},
		{input: "0-2", wantErr: "start at 1"},
		{input: "a-2", wantErr: "not a number"},
		{input: "1:2-3", wantErr: "mix"},
		{input: "3-1", wantErr: "end before start"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRange(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentEditor(t *testing.T) {
	doc := NewDocument("file:///q.sql", "SELECT 1;\nSELECT 2;", 1)

	ed := &DocumentEditor{Doc: doc}
	assert.Equal(t, doc.Content, ed.Text())
	_, ok := ed.Selection()
	assert.False(t, ok)

	ed.Sel = &Range{Start: Position{1, 0}, End: Position{1, 0}}
	_, ok = ed.Selection()
	assert.False(t, ok, "empty range is no selection")

	ed.Sel = &Range{Start: Position{1, 0}, End: Position{1, 9}}
	sel, ok := ed.Selection()
	assert.True(t, ok)
	assert.Equal(t, "SELECT 2;", sel)
}

func TestSingle(t *testing.T) {
	_, ok := Single{}.ActiveEditor()
	assert.False(t, ok)

	ed := &DocumentEditor{Doc: NewDocument("u", "x", 1)}
	got, ok := Single{Editor: ed}.ActiveEditor()
	assert.True(t, ok)
	assert.Same(t, ed, got)
}

func TestWriterOutput_LinesAreWholeUnderConcurrency(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriterOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.AppendLine(strings.Repeat("x", 100))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.Len(t, l, 100)
	}
}

func TestTerminalNotifier_PlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf)

	n.Info("BigQuery job ID: job_1")
	n.Error("No text is currently selected")
	n.Hint("Type .help for commands")

	assert.Equal(t, "info: BigQuery job ID: job_1\nerror: No text is currently selected\nType .help for commands\n", buf.String())
}
