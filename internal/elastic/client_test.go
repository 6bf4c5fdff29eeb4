package elastic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEnsureIndex(t *testing.T) {
	var created []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			created = append(created, strings.TrimPrefix(r.URL.Path, "/"))
			json.NewEncoder(w).Encode(map[string]any{"acknowledged": true})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if err := client.EnsureIndex(context.Background(), "case1_evtx"); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if len(created) != 1 || created[0] != "case1_evtx" {
		t.Errorf("unexpected creates: %v", created)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [case1_evtx] already exists"},"status":400}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	if err := client.EnsureIndex(context.Background(), "case1_evtx"); err != nil {
		t.Fatalf("expected idempotent create, got: %v", err)
	}
}

func TestDeleteIndex_NotFoundIsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	if err := client.DeleteIndex(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
}

func TestCatIndices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_cat/indices" {
			io.WriteString(w, `[{"index":"case1_evtx","docs.count":"120","store.size":"2.1mb"},{"index":".kibana","docs.count":"9","store.size":"10kb"}]`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	infos, err := client.CatIndices(context.Background())
	if err != nil {
		t.Fatalf("CatIndices: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "case1_evtx" || infos[0].DocsCount != "120" {
		t.Errorf("unexpected indices: %+v", infos)
	}
}

func TestBulkIngest_Batching(t *testing.T) {
	var batches [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_bulk" {
			http.NotFound(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var docs []string
		sc := bufio.NewScanner(bytes.NewReader(body))
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, `{"index":`) {
				continue
			}
			docs = append(docs, line)
		}
		batches = append(batches, docs)
		items := make([]map[string]map[string]int, len(docs))
		for i := range items {
			items[i] = map[string]map[string]int{"index": {"status": 201}}
		}
		json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": items})
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	docs := make([]map[string]any, 5)
	for i := range docs {
		docs[i] = map[string]any{"n": i}
	}
	report, err := client.BulkIngest(context.Background(), "case1_evtx", docs, 2)
	if err != nil {
		t.Fatalf("BulkIngest: %v", err)
	}
	if report.Indexed != 5 || report.Failed != 0 || report.Batches != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(batches) != 3 || len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Errorf("unexpected batching: %v", batches)
	}
}

func TestBulkIngest_RetriesThenCountsFailures(t *testing.T) {
	orig := bulkBackoff
	bulkBackoff = time.Millisecond
	defer func() { bulkBackoff = orig }()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"type":"unavailable","reason":"shard down"},"status":503}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	docs := []map[string]any{{"a": 1}, {"b": 2}}
	report, err := client.BulkIngest(context.Background(), "case1_mft", docs, 10)
	if err == nil {
		t.Fatal("expected error when every batch failed")
	}
	if attempts != bulkRetries {
		t.Errorf("attempts = %d, want %d", attempts, bulkRetries)
	}
	if report.Failed != 2 || report.Indexed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestBulkIngest_PartialItemFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	docs := []map[string]any{{"a": 1}, {"b": 2}}
	report, err := client.BulkIngest(context.Background(), "case1_lnk", docs, 10)
	if err != nil {
		t.Fatalf("BulkIngest: %v", err)
	}
	if report.Indexed != 1 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSanitizeIndexName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Case Alpha", "case_alpha"},
		{"CASE/2023#1", "case_2023_1"},
		{"-leading", "leading"},
		{"..", "unnamed"},
		{"", "unnamed"},
		{"already_fine", "already_fine"},
		{"a:b,c*d", "a_b_c_d"},
		{"_+.strip", "strip"},
		{"a  b ", "a_b"},
		{"a//b\\\\c", "a_b_c"},
		{"trailing_", "trailing"},
	}
	for _, tt := range tests {
		if got := SanitizeIndexName(tt.in); got != tt.want {
			t.Errorf("SanitizeIndexName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAPIErrorPredicates(t *testing.T) {
	err404 := newAPIError("delete index", 404, "index_not_found_exception", "no such index")
	err409 := newAPIError("create", 409, "", "conflict")
	errExists := newAPIError("create index", 400, "resource_already_exists_exception", "exists")

	if !IsNotFound(err404) || IsNotFound(err409) {
		t.Error("IsNotFound misclassified")
	}
	if !IsConflict(err409) {
		t.Error("IsConflict misclassified")
	}
	if !IsAlreadyExists(errExists) || IsAlreadyExists(err404) {
		t.Error("IsAlreadyExists misclassified")
	}
}
