package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apiContext "worksphere/internal/api/context"
	"worksphere/internal/platform/auth"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/repositories"
)

func TestTenantMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	middleware := NewTenantMiddleware(repositories.NewOrganizationRepository(db))
	columns := []string{"id", "slug", "name", "plan_tier", "status", "created_at", "updated_at", "deleted_at"}

	withClaims := func(orgID string) *http.Request {
		req, _ := http.NewRequest("GET", "/", nil)
		ctx := context.WithValue(req.Context(), apiContext.Claims, &auth.Claims{OrganizationID: orgID})
		return req.WithContext(ctx)
	}

	t.Run("Valid Tenant", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).AddRow("org_123", "test-org", "Test Org", "pro", "active", 1234567890, 1234567890, nil)
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_123").
			WillReturnRows(rows)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant := Tenant(r.Context())
			if tenant == nil || tenant.OrgID != "org_123" || tenant.OrgSlug != "test-org" {
				t.Errorf("unexpected tenant: %+v", tenant)
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, withClaims("org_123"))

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Organization Not Found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_missing").
			WillReturnRows(sqlmock.NewRows(columns))

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("next handler should not be called")
		})
		handler.ServeHTTP(rr, withClaims("org_missing"))

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Missing Claims", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		rr := httptest.NewRecorder()
		middleware.Handle(func(w http.ResponseWriter, r *http.Request) {})(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{"owner", http.StatusOK},
		{"admin", http.StatusOK},
		{"member", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), apiContext.Claims, &auth.Claims{Role: tt.role}))

			rr := httptest.NewRecorder()
			RequireRole("admin", "owner")(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{APIWritePerMinute: 2})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Limit(LimitAPIWrite)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		rr := httptest.NewRecorder()
		handler(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Half a minute refills one token at 2/min.
	now = now.Add(30 * time.Second)
	if !rl.Allow("10.1.1.1:"+LimitAPIWrite, 2) {
		t.Error("expected token after refill")
	}
}
