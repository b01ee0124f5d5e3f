package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

func asUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-Test-User"), 10, 64); err == nil {
			httpkit.SetPrincipal(c, httpkit.Principal{UserID: id, Role: "spotter", IsActive: true})
		}
		c.Next()
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *updates.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := updates.NewMemoryStore()

	r := gin.New()
	NewHTTPHandler(store, nil).RegisterRoutes(r.Group("/api/updates", asUser()))
	return r, store
}

func do(r *gin.Engine, method, target string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListForUser(t *testing.T) {
	r, store := newTestRouter(t)
	for i := 0; i < 3; i++ {
		_, _ = store.Create(context.Background(), updates.CreateParams{RecipientID: 1, UpdateType: "GENERAL", Title: "t", Message: "m"})
	}
	_, _ = store.Create(context.Background(), updates.CreateParams{RecipientID: 2, Title: "t", Message: "m"})

	rec := do(r, http.MethodGet, "/api/updates/user/1/?page_size=2", 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page httpkit.PageResponse[UpdateResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 3 || len(page.Results) != 2 || page.Next == nil || page.Previous != nil {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Results[0].ID != 3 || page.Results[0].DeliveryStatus != updates.StatusPending {
		t.Fatalf("expected newest first, got %+v", page.Results[0])
	}
}

func TestListForUserRules(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		user   int64
		want   int
	}{
		{"anonymous", "/api/updates/user/1/", 0, http.StatusUnauthorized},
		{"other user", "/api/updates/user/2/", 1, http.StatusForbidden},
		{"bad id", "/api/updates/user/abc/", 1, http.StatusBadRequest},
		{"bad page", "/api/updates/user/1/?page=0", 1, http.StatusBadRequest},
		{"empty", "/api/updates/user/1/", 1, http.StatusOK},
	}
	for _, tc := range tests {
		if rec := do(r, http.MethodGet, tc.target, tc.user); rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestMarkRead(t *testing.T) {
	r, store := newTestRouter(t)
	u, _ := store.Create(context.Background(), updates.CreateParams{RecipientID: 1, Title: "t", Message: "m"})
	target := "/api/updates/" + strconv.FormatInt(u.ID, 10) + "/read/"

	if rec := do(r, http.MethodPatch, target, 2); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", rec.Code)
	}

	rec := do(r, http.MethodPatch, target, 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp UpdateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.IsRead {
		t.Fatal("expected update to be read")
	}
}
