package cms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fixtureServer serves canned Strapi-style payloads and records the
// Authorization header it saw.
func fixtureServer(t *testing.T, auth *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("writing fixture: %v", err)
		}
	}
	record := func(r *http.Request) {
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
	}

	mux.HandleFunc("/api/experiences", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":[
			{"documentId":"exp1","title":"Backend Engineer","subtitle":"Acme Corp","text":"Built billing APIs.","updatedAt":"2024-05-01T10:00:00Z"}
		]}`)
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":[
			{"documentId":"proj1","title":"Portfolio Bot","description":"A chat assistant.","markdown":"Uses **RAG**.","updatedAt":"2024-06-01T10:00:00Z"}
		]}`)
	})
	mux.HandleFunc("/api/skills", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":[
			{"documentId":"sk1","name":"Go","description":"Services and tooling.","updatedAt":"2024-04-01T10:00:00Z"}
		]}`)
	})
	mux.HandleFunc("/api/contact-links", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":[
			{"documentId":"c2","socialMedia":"GitHub","text":"My code","link":"https://github.com/paul","updatedAt":"2024-03-02T10:00:00Z"},
			{"documentId":"c1","socialMedia":"Email","text":"Reach me","link":"paul@example.com","updatedAt":"2024-03-01T10:00:00Z"}
		]}`)
	})
	mux.HandleFunc("/api/homepage", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":{"documentId":"home1","textSectionTitle":"About me","textSectionText":"I build backends.","updatedAt":"2024-02-01T10:00:00Z"}}`)
	})
	mux.HandleFunc("/api/ai-global", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		write(w, `{"data":{"name":"Paul","description":"Paul, a backend engineer from Lyon"}}`)
	})

	return httptest.NewServer(mux)
}

func TestFetchAllMapsTables(t *testing.T) {
	var auth string
	srv := fixtureServer(t, &auth)
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL + "/api", APIKey: "secret-token"}, nil)
	docs, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	// experiences + projects + skills + aggregated contacts + homepage.
	if len(docs) != 5 {
		t.Fatalf("documents = %d, want 5", len(docs))
	}
	if auth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", auth)
	}

	byID := map[string]int{}
	for i, doc := range docs {
		byID[doc.ID] = i
	}

	exp := docs[byID["exp1"]]
	if exp.Category != "Experiences" {
		t.Errorf("experience category = %q", exp.Category)
	}
	if !strings.Contains(exp.Text, "Backend Engineer - Acme Corp") {
		t.Errorf("experience text = %q, want joined titles", exp.Text)
	}
	if !strings.Contains(exp.Text, "Built billing APIs.") {
		t.Errorf("experience text = %q, want content", exp.Text)
	}

	proj := docs[byID["proj1"]]
	if !strings.Contains(proj.Text, "A chat assistant.") || !strings.Contains(proj.Text, "Uses **RAG**.") {
		t.Errorf("project text = %q, want both content fields", proj.Text)
	}

	agg, ok := byID["agg_c1_c2"]
	if !ok {
		t.Fatalf("aggregated contacts document missing, got ids %v", byID)
	}
	contacts := docs[agg]
	if contacts.Category != "Contacts" {
		t.Errorf("contacts category = %q", contacts.Category)
	}
	if !strings.Contains(contacts.Text, "https://github.com/paul") ||
		!strings.Contains(contacts.Text, "paul@example.com") {
		t.Errorf("contacts text = %q, want both links", contacts.Text)
	}
	if !strings.Contains(contacts.Text, "\n\n---\n\n") {
		t.Errorf("contacts text = %q, want record separator", contacts.Text)
	}
	if contacts.UpdatedAt == nil || contacts.UpdatedAt.Day() != 2 {
		t.Errorf("contacts updatedAt = %v, want latest entry's date", contacts.UpdatedAt)
	}

	home := docs[byID["home1"]]
	if home.Category != "About" {
		t.Errorf("homepage category = %q", home.Category)
	}
}

func TestFetchPersona(t *testing.T) {
	srv := fixtureServer(t, nil)
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL + "/api"}, nil)
	persona, err := client.FetchPersona(context.Background())
	if err != nil {
		t.Fatalf("FetchPersona: %v", err)
	}
	if persona.Name != "Paul" {
		t.Errorf("name = %q", persona.Name)
	}
	if persona.Description != "Paul, a backend engineer from Lyon" {
		t.Errorf("description = %q", persona.Description)
	}
}

func TestFetchAllServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, nil)
	if _, err := client.FetchAll(context.Background()); err == nil {
		t.Fatal("FetchAll succeeded against a failing CMS")
	}
}

func TestFetchAllNoAuthHeaderWithoutKey(t *testing.T) {
	var auth string
	srv := fixtureServer(t, &auth)
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL + "/api"}, nil)
	if _, err := client.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
}
