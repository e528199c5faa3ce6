package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fitroom/internal/genimage"
	"fitroom/internal/imagestore"
	"fitroom/internal/resolver"
	"fitroom/internal/session"
	"fitroom/internal/wardrobe"
)

var fixturePNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	'f', 'i', 'x', 't', 'u', 'r', 'e',
}

func personURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(fixturePNG)
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	store := imagestore.NewMemoryStore()
	res := resolver.New(store, resolver.Config{})
	catalog := wardrobe.Catalog{
		{ID: "w1", Name: "Denim Jacket", Image: personURI()},
		{ID: "w2", Name: "Linen Shirt", Image: personURI()},
	}
	svc := session.New(genimage.NewFake(), store, res, session.Config{
		Catalog: catalog,
		Logger:  log.New(io.Discard, "", 0),
	})
	handler, err := New(Config{Sessions: svc, Store: store})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeSnapshot(t *testing.T, data []byte) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v (%s)", err, string(data))
	}
	return snap
}

func TestFittingFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/sessions", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d: %s", res.StatusCode, string(data))
	}
	snap := decodeSnapshot(t, data)
	if snap.ID == "" {
		t.Fatal("missing session id")
	}
	base := srv.URL + "/v1/sessions/" + snap.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/model", map[string]string{"image": personURI()})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set model status %d: %s", res.StatusCode, string(data))
	}
	snap = decodeSnapshot(t, data)
	if len(snap.Layers) != 1 || snap.Error != "" {
		t.Fatalf("unexpected snapshot after model: %s", string(data))
	}

	// The rendered view must be fetchable as an image.
	imgRes, err := client.Get(srv.URL + snap.ViewImage)
	if err != nil {
		t.Fatalf("fetch view image: %v", err)
	}
	imgData, _ := io.ReadAll(imgRes.Body)
	imgRes.Body.Close()
	if imgRes.StatusCode != http.StatusOK {
		t.Fatalf("view image status %d", imgRes.StatusCode)
	}
	if ct := imgRes.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		t.Fatalf("view image content type %q", ct)
	}
	if len(imgData) == 0 {
		t.Fatal("empty view image")
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/wardrobe", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("wardrobe status %d: %s", res.StatusCode, string(data))
	}
	var wr WardrobeResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		t.Fatalf("unmarshal wardrobe: %v", err)
	}
	if len(wr.Items) != 2 {
		t.Fatalf("wardrobe items = %d, want 2", len(wr.Items))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/garment", map[string]string{"garment_id": "w1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("select garment status %d: %s", res.StatusCode, string(data))
	}
	snap = decodeSnapshot(t, data)
	if len(snap.Layers) != 2 || snap.Layers[1].Garment.ID != "w1" {
		t.Fatalf("unexpected snapshot after garment: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/undo", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("undo status %d: %s", res.StatusCode, string(data))
	}
	snap = decodeSnapshot(t, data)
	if len(snap.Layers) != 1 || snap.RedoGarment == nil || snap.RedoGarment.ID != "w1" {
		t.Fatalf("unexpected snapshot after undo: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, base+"/pose", map[string]int{"index": 2})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("select pose status %d: %s", res.StatusCode, string(data))
	}
	snap = decodeSnapshot(t, data)
	if snap.PoseIndex != 2 {
		t.Fatalf("pose index = %d, want 2", snap.PoseIndex)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/pose/step", map[string]string{"direction": "prev"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("step pose status %d: %s", res.StatusCode, string(data))
	}
	snap = decodeSnapshot(t, data)
	if snap.PoseIndex != 0 {
		t.Fatalf("pose index = %d, want 0 after prev", snap.PoseIndex)
	}

	req, _ := http.NewRequest(http.MethodDelete, base, nil)
	delRes, err := client.Do(req)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	delRes.Body.Close()
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", delRes.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, base, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted session status %d: %s", res.StatusCode, string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/sessions/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", res.StatusCode)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, string(data))
	}
	if envelope.Error.Code != "session_not_found" {
		t.Fatalf("code = %q, want session_not_found", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sessions", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d", res.StatusCode)
	}
	snap := decodeSnapshot(t, data)
	base := srv.URL + "/v1/sessions/" + snap.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/garment", map[string]string{"garment_id": "w1"})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("garment before model status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "no_model" {
		t.Fatalf("code = %q, want no_model", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/garment", map[string]string{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty garment_id status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/pose/step", map[string]string{"direction": "sideways"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad direction status %d: %s", res.StatusCode, string(data))
	}
}

func TestListPoses(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/poses", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("poses status %d: %s", res.StatusCode, string(data))
	}
	var pr PosesResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		t.Fatalf("unmarshal poses: %v", err)
	}
	if len(pr.Poses) == 0 || pr.Default != pr.Poses[0] {
		t.Fatalf("unexpected poses response: %+v", pr)
	}
}

func TestAddCustomGarmentOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/sessions", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d", res.StatusCode)
	}
	snap := decodeSnapshot(t, data)
	base := srv.URL + "/v1/sessions/" + snap.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/wardrobe", map[string]string{
		"name":  "My Hoodie",
		"image": personURI(),
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add garment status %d: %s", res.StatusCode, string(data))
	}
	var g struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Custom bool   `json:"custom"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("unmarshal garment: %v", err)
	}
	if g.ID == "" || g.Name != "My Hoodie" || !g.Custom {
		t.Fatalf("unexpected garment: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/wardrobe", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("wardrobe status %d", res.StatusCode)
	}
	var wr WardrobeResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		t.Fatalf("unmarshal wardrobe: %v", err)
	}
	if len(wr.Items) != 3 || !wr.Items[2].Custom {
		t.Fatalf("custom garment missing from wardrobe: %s", string(data))
	}
}

func TestWatchStreamsSnapshots(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/sessions", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d", res.StatusCode)
	}
	snap := decodeSnapshot(t, data)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + snap.ID + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first watchOutbound
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Session == nil || first.Session.ID != snap.ID {
		t.Fatalf("unexpected first message: %+v", first)
	}

	if _, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/sessions/"+snap.ID+"/model", map[string]string{"image": personURI()}); len(body) == 0 {
		t.Fatal("set model returned empty body")
	}

	// A snapshot with the finished model must arrive; intermediate busy
	// snapshots may be coalesced away.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("no snapshot with model arrived")
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg watchOutbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if msg.Session != nil && !msg.Session.Busy && len(msg.Session.Layers) == 1 {
			break
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+snap.ID, nil)
	delRes, err := client.Do(req)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	delRes.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			// Close handshake may surface as EOF depending on timing.
			return
		}
	}
}

func TestWatchUnknownSessionRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/nope/watch"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", res)
	}
}
