package core

import (
	"testing"

	"github.com/remcore/rem/internal/corelog"
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/schema"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(dir, Options{Log: corelog.New(false, nil), TrustedRoots: []string{dir}})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func paragraphDoc(text string) richtext.Document {
	return richtext.Document{
		Root: richtext.Node{
			Type: "root",
			Children: []richtext.Node{
				{Type: "paragraph", Children: []richtext.Node{{Type: "text", Text: text}}},
			},
		},
	}
}

func headingThenParagraphDoc(heading, body string) richtext.Document {
	return richtext.Document{
		Root: richtext.Node{
			Type: "root",
			Children: []richtext.Node{
				{Type: "heading", Tag: "h1", Children: []richtext.Node{{Type: "text", Text: heading}}},
				{Type: "paragraph", Children: []richtext.Node{{Type: "text", Text: body}}},
			},
		},
	}
}

func mustSaveNote(t *testing.T, e *Engine, input SaveNoteInput) schema.Note {
	t.Helper()
	if input.Document.Root.Type == "" {
		input.Document = paragraphDoc("hello")
	}
	n, err := e.SaveNote(input)
	if err != nil {
		t.Fatalf("save note: %v", err)
	}
	return n
}
