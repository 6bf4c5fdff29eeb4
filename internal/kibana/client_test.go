package kibana

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateIndexPattern(t *testing.T) {
	var gotXSRF, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" && r.URL.Path == "/api/saved_objects/index-pattern/case1_*" {
			gotXSRF = r.Header.Get("kbn-xsrf")
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			io.WriteString(w, `{"id":"case1_*"}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if err := client.CreateIndexPattern(context.Background(), "case1"); err != nil {
		t.Fatalf("CreateIndexPattern: %v", err)
	}
	if gotXSRF != "true" {
		t.Errorf("kbn-xsrf = %q", gotXSRF)
	}
	var payload struct {
		Attributes struct {
			Title         string `json:"title"`
			TimeFieldName string `json:"timeFieldName"`
		} `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(gotBody), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload.Attributes.Title != "case1_*" || payload.Attributes.TimeFieldName != "@timestamp" {
		t.Errorf("unexpected attributes: %+v", payload.Attributes)
	}
}

func TestCreateIndexPattern_ConflictIsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"statusCode":409,"message":"version conflict, document already exists"}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	if err := client.CreateIndexPattern(context.Background(), "case1_evtx"); err != nil {
		t.Fatalf("expected idempotent create, got: %v", err)
	}
}

func TestFindIndexPatterns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saved_objects/_find" {
			if got := r.URL.Query().Get("search"); got != "case1*" {
				t.Errorf("search = %q", got)
			}
			io.WriteString(w, `{"saved_objects":[{"id":"case1_evtx","attributes":{"title":"case1_evtx"}},{"id":"case1_mft","attributes":{"title":"case1_mft"}}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	patterns, err := client.FindIndexPatterns(context.Background(), "case1*")
	if err != nil {
		t.Fatalf("FindIndexPatterns: %v", err)
	}
	if len(patterns) != 2 || patterns[0].ID != "case1_evtx" {
		t.Errorf("unexpected patterns: %+v", patterns)
	}
}

func TestDeleteIndexPattern_NotFoundIsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"statusCode":404,"message":"Saved object not found"}`)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	if err := client.DeleteIndexPattern(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteIndexPattern: %v", err)
	}
}

func TestSetTimezoneUTC(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" && r.URL.Path == "/api/kibana/settings" {
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			io.WriteString(w, `{"settings":{}}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, _ := New(server.URL, WithHTTPClient(server.Client()))
	if err := client.SetTimezoneUTC(context.Background()); err != nil {
		t.Fatalf("SetTimezoneUTC: %v", err)
	}
	if gotBody != `{"changes":{"dateFormat:tz":"UTC"}}` {
		t.Errorf("unexpected body: %s", gotBody)
	}
}
