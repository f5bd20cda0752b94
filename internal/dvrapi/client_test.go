package dvrapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return New(host, port)
}

func TestFiles_DecodesList(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dvr/files" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]File{{ID: "42", Path: "/imports/lane1.strmlnk"}})
	})

	files, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 || files[0].ID != "42" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestReprocessFile_PUT(t *testing.T) {
	var gotMethod string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if !strings.HasSuffix(r.URL.Path, "/dvr/files/42/reprocess") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := c.ReprocessFile(context.Background(), "42"); err != nil {
		t.Fatalf("ReprocessFile: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", gotMethod)
	}
}

func TestClientsInfo_FiltersNothingClientSide(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ClientInfo{
			{IP: "192.168.1.50", Platform: "AppleTV", Status: "playing", Channel: "Fruit Lane 7"},
		})
	})

	clients, err := c.ClientsInfo(context.Background())
	if err != nil {
		t.Fatalf("ClientsInfo: %v", err)
	}
	if len(clients) != 1 || clients[0].IP != "192.168.1.50" {
		t.Fatalf("unexpected clients: %+v", clients)
	}
}

func TestHideGroup_ErrorsOnNonSuccessStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := c.HideGroup(context.Background(), "grp1"); err == nil {
		t.Fatal("expected error on 500 status")
	}
}

func TestPlayRecording_PostsToClientAPIPort(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	if err := PlayRecording(context.Background(), u.Hostname(), port, "42"); err != nil {
		t.Fatalf("PlayRecording: %v", err)
	}
	if gotPath != "/api/play/recording/42" {
		t.Errorf("unexpected path %s", gotPath)
	}
}
