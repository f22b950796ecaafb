package app

import (
	"context"
	"errors"
	"testing"

	"github.com/pauldeveaux/portfolio/internal/cms"
	"github.com/pauldeveaux/portfolio/internal/document"
)

type fakeSource struct {
	docs       []document.Document
	fetchErr   error
	persona    cms.Persona
	personaErr error
}

func (s *fakeSource) FetchAll(context.Context) ([]document.Document, error) {
	return s.docs, s.fetchErr
}

func (s *fakeSource) FetchPersona(context.Context) (cms.Persona, error) {
	return s.persona, s.personaErr
}

type fakeIndex struct {
	cleared  int
	added    []document.Document
	chunks   int
	clearErr error
	addErr   error
}

func (i *fakeIndex) ClearCollection(context.Context) error {
	i.cleared++
	return i.clearErr
}

func (i *fakeIndex) AddDocuments(_ context.Context, docs []document.Document) (int, error) {
	i.added = docs
	return i.chunks, i.addErr
}

type fakePersona struct {
	set string
}

func (p *fakePersona) SetPersona(persona string) { p.set = persona }

func TestReindexHappyPath(t *testing.T) {
	src := &fakeSource{
		docs:    []document.Document{{ID: "d1", Text: "content"}},
		persona: cms.Persona{Description: "Paul, a Go developer"},
	}
	idx := &fakeIndex{chunks: 7}
	p := &fakePersona{}

	count, err := NewIndexer(src, idx, p, nil).Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if count != 7 {
		t.Errorf("chunks = %d, want 7", count)
	}
	if idx.cleared != 1 {
		t.Errorf("cleared = %d, want 1", idx.cleared)
	}
	if len(idx.added) != 1 || idx.added[0].ID != "d1" {
		t.Errorf("added = %+v", idx.added)
	}
	if p.set != "Paul, a Go developer" {
		t.Errorf("persona = %q", p.set)
	}
}

func TestReindexFetchFailureKeepsIndex(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("cms down")}
	idx := &fakeIndex{}

	if _, err := NewIndexer(src, idx, nil, nil).Reindex(context.Background()); err == nil {
		t.Fatal("Reindex succeeded with unreachable source")
	}
	if idx.cleared != 0 {
		t.Error("collection cleared despite fetch failure")
	}
}

func TestReindexPersonaFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		docs:       []document.Document{{ID: "d1", Text: "content"}},
		personaErr: errors.New("ai-global missing"),
	}
	idx := &fakeIndex{chunks: 3}
	p := &fakePersona{set: "existing"}

	count, err := NewIndexer(src, idx, p, nil).Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if count != 3 {
		t.Errorf("chunks = %d, want 3", count)
	}
	if p.set != "existing" {
		t.Errorf("persona changed to %q on failed refresh", p.set)
	}
}

func TestReindexAddFailure(t *testing.T) {
	src := &fakeSource{docs: []document.Document{{ID: "d1", Text: "content"}}}
	idx := &fakeIndex{addErr: errors.New("embedder down")}

	if _, err := NewIndexer(src, idx, nil, nil).Reindex(context.Background()); err == nil {
		t.Fatal("Reindex succeeded despite indexing failure")
	}
}
