package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"commandr-server/internal/auth"
	"commandr-server/internal/store"
)

func testTokenConfig() auth.TokenConfig {
	return auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func mintSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/v1/session", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mint: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	tok, _ := resp["token"].(string)
	if tok == "" {
		t.Fatalf("mint: missing token in %v", resp)
	}
	return tok
}

func uploadAsset(t *testing.T, r http.Handler, token, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func unitArchive(t *testing.T, entry, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(entry)
	if err != nil {
		t.Fatalf("zip Create: %v", err)
	}
	_, _ = w.Write([]byte(body))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	return buf.Bytes()
}

func TestAutoProvisionedSchemaFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewWithOptions(store.Options{Policy: store.PolicyAutoProvision})
	r := NewRouter(Deps{Store: st, TokenConfig: testTokenConfig()})

	tok := mintSession(t, r)
	w, acc := doJSON(t, r, http.MethodGet, "/v1/account", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("account: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if acc["id"] == "" {
		t.Fatalf("expected account id, got %v", acc)
	}

	w, sc := doJSON(t, r, http.MethodPost, "/v1/schemas", tok, map[string]any{
		"name": "Budget",
		"tables": []any{map[string]any{
			"name": "Costs",
			"columns": []any{
				map[string]any{"name": "Amount", "type": "Double"},
				map[string]any{"name": "Total", "type": "Double", "unit": "sys.Sum"},
			},
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create schema: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	tables := sc["tables"].([]any)
	table := tables[0].(map[string]any)
	var totalID string
	for _, raw := range table["columns"].([]any) {
		col := raw.(map[string]any)
		if col["name"] == "Total" {
			totalID = col["id"].(string)
		}
	}
	if totalID == "" {
		t.Fatalf("expected Total column in %v", table)
	}

	w, res := doJSON(t, r, http.MethodPost, "/v1/columns/"+totalID+"/evaluate", tok, map[string]any{
		"params": map[string]any{"values": []any{1.5, 2.5}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if res["result"] != 4.0 {
		t.Fatalf("expected 4, got %v", res["result"])
	}

	// a second tenant cannot see the first one's table or column
	other := mintSession(t, r)
	w, _ = doJSON(t, r, http.MethodGet, "/v1/tables/"+table["id"].(string), other, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign table: expected 404, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodPost, "/v1/columns/"+totalID+"/evaluate", other, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign column: expected 404, got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/schemas", tok, map[string]any{
		"name": "Dup",
		"tables": []any{
			map[string]any{"name": "T"},
			map[string]any{"name": "t"},
		},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate table: expected 409, got %d", w.Code)
	}
}

func TestArchiveUnitFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewWithOptions(store.Options{Policy: store.PolicyAutoProvision})
	r := NewRouter(Deps{Store: st, TokenConfig: testTokenConfig(), MaxUploadBytes: 1 << 20})

	owner := mintSession(t, r)
	stranger := mintSession(t, r)

	if w := uploadAsset(t, r, owner, "udf.zip", unitArchive(t, "pkg/Double.unit", "x * 2")); w.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w, res := doJSON(t, r, http.MethodPost, "/v1/units/pkg.Double/evaluate", owner, map[string]any{
		"params": map[string]any{"x": 21.0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if res["result"] != 42.0 {
		t.Fatalf("expected 42, got %v", res["result"])
	}

	w, _ = doJSON(t, r, http.MethodPost, "/v1/units/pkg.Double/evaluate", stranger, map[string]any{
		"params": map[string]any{"x": 1.0},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger: expected 404, got %d", w.Code)
	}

	w, list := doJSON(t, r, http.MethodGet, "/v1/assets", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	assets := list["assets"].([]any)
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	id := assets[0].(map[string]any)["id"].(string)

	w, _ = doJSON(t, r, http.MethodGet, "/v1/assets/"+id, stranger, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign asset: expected 404, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodDelete, "/v1/assets/"+id, owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewWithOptions(store.Options{Policy: store.PolicyAutoProvision})
	r := NewRouter(Deps{Store: st, TokenConfig: testTokenConfig(), MaxUploadBytes: 512})

	tok := mintSession(t, r)
	w := uploadAsset(t, r, tok, "big.bin", bytes.Repeat([]byte("x"), 4096))
	if w.Code == http.StatusOK {
		t.Fatalf("expected oversized upload rejected")
	}
	_, list := doJSON(t, r, http.MethodGet, "/v1/assets", tok, nil)
	if assets, _ := list["assets"].([]any); len(assets) != 0 {
		t.Fatalf("unexpected asset stored: %v", assets)
	}
}

func TestStrictPolicyAccountFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewWithOptions(store.Options{Policy: store.PolicyStrict})
	r := NewRouter(Deps{Store: st, TokenConfig: testTokenConfig()})

	tok := mintSession(t, r)
	w, _ := doJSON(t, r, http.MethodGet, "/v1/account", tok, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before account exists, got %d", w.Code)
	}

	w, created := doJSON(t, r, http.MethodPost, "/v1/accounts", tok, map[string]any{"name": "a@x.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w, _ = doJSON(t, r, http.MethodGet, "/v1/account", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after create, got %d", w.Code)
	}

	other := mintSession(t, r)
	w, _ = doJSON(t, r, http.MethodPost, "/v1/accounts", other, map[string]any{"name": "A@X.COM"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken name, got %d", w.Code)
	}
	w, loggedIn := doJSON(t, r, http.MethodPost, "/v1/account/login", other, map[string]any{"name": "A@x.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if loggedIn["id"] != created["id"] {
		t.Fatalf("expected login to reach the same account")
	}
	w, _ = doJSON(t, r, http.MethodPost, "/v1/account/login", other, map[string]any{"name": "nobody"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown name, got %d", w.Code)
	}
}

func TestUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Store: store.New(), TokenConfig: testTokenConfig()})

	w, _ := doJSON(t, r, http.MethodGet, "/v1/schemas", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", w.Code)
	}
}
