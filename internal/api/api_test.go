package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halvard/notegraph/internal/graph"
	"github.com/halvard/notegraph/internal/noteservice"
	"github.com/halvard/notegraph/internal/testutil"
)

type testEnv struct {
	server *httptest.Server
	svc    *noteservice.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	_, store := testutil.TestVault(t)
	svc := noteservice.NewService(store, graph.New(), testutil.TestDB(t))
	router := NewRouter(svc, false, "", nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func (e *testEnv) createNote(t *testing.T, path, content string) NoteDetail {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: path, Content: content}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create %s: status %d: %s", path, resp.StatusCode, body)
	}
	var d NoteDetail
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNoteCRUD(t *testing.T) {
	env := newTestEnv(t)

	d := env.createNote(t, "topics/go.md", "---\ntitle: Go\ntags: [lang]\n---\n# Go\nBody.")
	if d.ID != "topics/go" || d.Title != "Go" || d.Checksum == "" {
		t.Errorf("created = %+v", d)
	}

	// Duplicate create conflicts.
	resp, _ := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "topics/go.md", Content: "x"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d", resp.StatusCode)
	}

	// Read back.
	resp, body := env.do(t, http.MethodGet, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d: %s", resp.StatusCode, body)
	}
	var got NoteDetail
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Go" || len(got.Tags) != 1 {
		t.Errorf("got = %+v", got)
	}

	// Update with stale If-Match conflicts.
	resp, _ = env.do(t, http.MethodPut, "/notes/topics/go.md",
		UpdateNoteRequest{Content: "changed"}, map[string]string{"If-Match": "bogus"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale update status = %d", resp.StatusCode)
	}

	// Update with the right checksum succeeds.
	resp, body = env.do(t, http.MethodPut, "/notes/topics/go.md",
		UpdateNoteRequest{Content: "changed"}, map[string]string{"If-Match": got.Checksum})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}

	// Delete.
	resp, _ = env.do(t, http.MethodDelete, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/notes/topics/go.md", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestListNotes(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "a.md", "---\ntitle: A\ntags: [work]\n---\nx")
	env.createNote(t, "b.md", "---\ntitle: B\n---\ny")

	resp, body := env.do(t, http.MethodGet, "/notes?sort=path", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var list NoteListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || len(list.Notes) != 2 || list.Notes[0].Path != "a.md" {
		t.Errorf("list = %+v", list)
	}

	resp, body = env.do(t, http.MethodGet, "/notes?tag=work", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Notes[0].Path != "a.md" {
		t.Errorf("tag filter = %+v", list)
	}
}

func TestResolveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "one.md", "---\ntitle: Topic\naliases: [T1]\n---\nx")

	resp, body := env.do(t, http.MethodGet, "/resolve?text=t1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rr ResolveResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		t.Fatal(err)
	}
	if rr.ID != "one" || rr.Ambiguous {
		t.Errorf("resolve = %+v", rr)
	}

	resp, _ = env.do(t, http.MethodGet, "/resolve?text=missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}

	env.createNote(t, "two.md", "---\ntitle: Topic\n---\ny")
	resp, body = env.do(t, http.MethodGet, "/resolve?text=Topic", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &rr); err != nil {
		t.Fatal(err)
	}
	if !rr.Ambiguous || len(rr.Candidates) != 2 || rr.ID != "one" {
		t.Errorf("ambiguous resolve = %+v", rr)
	}

	resp, _ = env.do(t, http.MethodGet, "/resolve", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing text status = %d", resp.StatusCode)
	}
}

func TestBacklinksAndGraph(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "target.md", "---\ntitle: Target\n---\nx")
	env.createNote(t, "src.md", "see [[Target]] and [[Nowhere]]")

	resp, body := env.do(t, http.MethodGet, "/backlinks/target.md", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var bl BacklinksResponse
	if err := json.Unmarshal(body, &bl); err != nil {
		t.Fatal(err)
	}
	if len(bl.Backlinks) != 1 || bl.Backlinks[0].SourceID != "src" {
		t.Errorf("backlinks = %+v", bl)
	}

	resp, body = env.do(t, http.MethodGet, "/graph", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var g GraphResponse
	if err := json.Unmarshal(body, &g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || len(g.Links) != 2 {
		t.Errorf("graph = %d nodes %d links", len(g.Nodes), len(g.Links))
	}

	resp, body = env.do(t, http.MethodGet, "/broken-links", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var br BrokenLinksResponse
	if err := json.Unmarshal(body, &br); err != nil {
		t.Fatal(err)
	}
	if len(br.BrokenLinks) != 1 || br.BrokenLinks[0].RawTarget != "Nowhere" {
		t.Errorf("broken = %+v", br)
	}
}

func TestTagsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "a.md", "---\ntags: [Work]\n---\nalso #home")
	env.createNote(t, "b.md", "#work everywhere")

	resp, body := env.do(t, http.MethodGet, "/tags", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var tags TagListResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		t.Fatal(err)
	}
	if len(tags.Tags) != 2 {
		t.Fatalf("tags = %+v", tags.Tags)
	}
	if tags.Tags[0].Tag != "home" || tags.Tags[1].Tag != "work" || tags.Tags[1].Notes != 2 {
		t.Errorf("tags = %+v", tags.Tags)
	}

	resp, body = env.do(t, http.MethodGet, "/tags/WORK", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var tn TagNotesResponse
	if err := json.Unmarshal(body, &tn); err != nil {
		t.Fatal(err)
	}
	if tn.Tag != "work" || len(tn.Notes) != 2 {
		t.Errorf("tag notes = %+v", tn)
	}
}

func TestMoveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "old.md", "body")

	resp, body := env.do(t, http.MethodPost, "/notes/move",
		MoveNoteRequest{OldPath: "old.md", NewPath: "archive/new.md"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var d NoteDetail
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatal(err)
	}
	if d.ID != "archive/new" {
		t.Errorf("moved = %+v", d)
	}

	resp, _ = env.do(t, http.MethodGet, "/notes/old.md", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("old path status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/notes/move",
		MoveNoteRequest{OldPath: "nope.md", NewPath: "x.md"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing move status = %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "a.md", "---\ntitle: Recipes\n---\ncarbonara with guanciale")

	resp, body := env.do(t, http.MethodGet, "/search?q=guanciale", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Results []struct {
			Path string `json:"path"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].Path != "a.md" {
		t.Errorf("results = %+v", out.Results)
	}

	resp, _ = env.do(t, http.MethodGet, "/search", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d", resp.StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, store := testutil.TestVault(t)
	svc := noteservice.NewService(store, graph.New(), testutil.TestDB(t))
	srv := httptest.NewServer(NewRouter(svc, true, "secret", nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d", resp.StatusCode)
	}
}

func TestNotePathDecoding(t *testing.T) {
	env := newTestEnv(t)
	env.createNote(t, "dir/note.md", "content")

	// Encoded slash form.
	resp, _ := env.do(t, http.MethodGet, fmt.Sprintf("/notes/%s", "dir%2Fnote.md"), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("encoded path status = %d", resp.StatusCode)
	}
}
