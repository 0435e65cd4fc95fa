package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brightpath-edu/exam-service/internal/models"
	"github.com/brightpath-edu/exam-service/internal/repositories"
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// fixedUserRepo serves a static user set for handler tests.
type fixedUserRepo struct {
	users map[string]*models.User
}

func (r *fixedUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fixedUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fixedUserRepo) GetByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fixedUserRepo) List(_ context.Context, _ repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *fixedUserRepo) Search(ctx context.Context, _ string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return r.List(ctx, filters)
}

func (r *fixedUserRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func (r *fixedUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *fixedUserRepo) HasRole(_ context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := r.users[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	return u.Role == role, nil
}

func newUserTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &fixedUserRepo{users: map[string]*models.User{
		"learner-1": {ID: "learner-1", FullName: "Lena Learner", Email: "lena@example.com", Role: models.RoleLearner},
		"trainer-1": {ID: "trainer-1", FullName: "Tom Trainer", Email: "tom@example.com", Role: models.RoleTrainer},
	}}
	handler := NewUserHandler(repo, utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	router := gin.New()
	asUser := func(id string, role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user_id", id)
			c.Set("user_role", role)
			c.Next()
		}
	}

	router.GET("/as-learner/users", asUser("learner-1", models.RoleLearner), handler.ListUsers)
	router.GET("/as-learner/users/search", asUser("learner-1", models.RoleLearner), handler.SearchUsers)
	router.GET("/as-learner/users/:id", asUser("learner-1", models.RoleLearner), handler.GetUser)
	router.GET("/as-trainer/users", asUser("trainer-1", models.RoleTrainer), handler.ListUsers)
	router.GET("/as-trainer/users/search", asUser("trainer-1", models.RoleTrainer), handler.SearchUsers)
	router.GET("/anonymous/users", handler.ListUsers)
	return router
}

func TestUserHandler_DirectoryRestrictedToEvaluators(t *testing.T) {
	router := newUserTestRouter(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "learner cannot list", path: "/as-learner/users", want: http.StatusForbidden},
		{name: "learner cannot search", path: "/as-learner/users/search?q=tom", want: http.StatusForbidden},
		{name: "trainer can list", path: "/as-trainer/users", want: http.StatusOK},
		{name: "trainer can search", path: "/as-trainer/users/search?q=tom", want: http.StatusOK},
		{name: "unauthenticated is rejected", path: "/anonymous/users", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}
}

func TestUserHandler_GetUser(t *testing.T) {
	router := newUserTestRouter(t)

	t.Run("learner can resolve a single user", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/as-learner/users/trainer-1", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/as-learner/users/nobody", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
