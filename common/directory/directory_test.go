package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/database/dynamotest"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

const (
	usersTable    = "users"
	checkInsTable = "checkins"
)

var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newDirectory(t *testing.T) (Directory, *dynamotest.Store) {
	t.Helper()

	store := dynamotest.New()
	if _, err := database.EnsureTables(context.Background(), store, database.TableDefinitions(usersTable, checkInsTable, database.Capacity{}), false); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	db := database.NewWithAPI(store, usersTable, checkInsTable)
	return NewDirectory(db, clock.NewFixed(now), bcrypt.MinCost), store
}

func mustCreate(t *testing.T, d Directory, input models.CreateUserInput) *models.User {
	t.Helper()
	u, err := d.CreateUser(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", input.Email, err)
	}
	return u
}

func TestCreateUserRoleRules(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	manager := mustCreate(t, d, models.CreateUserInput{Email: "sarah@example.com", Password: "password123", Name: "Sarah Johnson", Role: models.RoleManager, TeamID: "engineering-team"})
	member := mustCreate(t, d, models.CreateUserInput{Email: "alice@example.com", Password: "password123", Name: "Alice", Role: models.RoleMember, ManagerID: manager.ID})

	if manager.ID == "" || !manager.CreatedAt.Equal(now) {
		t.Fatalf("manager = %+v", manager)
	}
	if member.PasswordHash == "password123" {
		t.Fatalf("password stored in plain text")
	}

	tests := []struct {
		name  string
		input models.CreateUserInput
		code  apperrors.ErrorCode
	}{
		{"member without manager", models.CreateUserInput{Email: "x@example.com", Password: "pw1234", Name: "X", Role: models.RoleMember}, apperrors.CodeInvalidInput},
		{"manager with manager", models.CreateUserInput{Email: "y@example.com", Password: "pw1234", Name: "Y", Role: models.RoleManager, ManagerID: manager.ID}, apperrors.CodeInvalidInput},
		{"unknown role", models.CreateUserInput{Email: "z@example.com", Password: "pw1234", Name: "Z", Role: "admin"}, apperrors.CodeInvalidInput},
		{"manager does not exist", models.CreateUserInput{Email: "w@example.com", Password: "pw1234", Name: "W", Role: models.RoleMember, ManagerID: "missing"}, apperrors.CodeInvalidInput},
		{"manager is a member", models.CreateUserInput{Email: "v@example.com", Password: "pw1234", Name: "V", Role: models.RoleMember, ManagerID: member.ID}, apperrors.CodeInvalidInput},
		{"duplicate email", models.CreateUserInput{Email: "alice@example.com", Password: "pw1234", Name: "A2", Role: models.RoleMember, ManagerID: manager.ID}, apperrors.CodeAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateUser(ctx, tt.input)
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Fatalf("code = %s, want %s (%v)", got, tt.code, err)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()
	mustCreate(t, d, models.CreateUserInput{Email: "sarah@example.com", Password: "password123", Name: "Sarah", Role: models.RoleManager})

	user, err := d.Authenticate(ctx, "sarah@example.com", "password123")
	if err != nil || user.Email != "sarah@example.com" {
		t.Fatalf("Authenticate = %+v, %v", user, err)
	}

	for _, tc := range [][2]string{{"sarah@example.com", "wrong"}, {"nobody@example.com", "password123"}} {
		_, err := d.Authenticate(ctx, tc[0], tc[1])
		if apperrors.CodeOf(err) != apperrors.CodeUnauthorized {
			t.Fatalf("Authenticate(%s) code = %s", tc[0], apperrors.CodeOf(err))
		}
	}
}

func TestListings(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	sarah := mustCreate(t, d, models.CreateUserInput{Email: "sarah@example.com", Password: "password123", Name: "Sarah", Role: models.RoleManager})
	michael := mustCreate(t, d, models.CreateUserInput{Email: "michael@example.com", Password: "password123", Name: "Michael", Role: models.RoleManager})
	alice := mustCreate(t, d, models.CreateUserInput{Email: "alice@example.com", Password: "password123", Name: "Alice", Role: models.RoleMember, ManagerID: sarah.ID})
	mustCreate(t, d, models.CreateUserInput{Email: "bob@example.com", Password: "password123", Name: "Bob", Role: models.RoleMember, ManagerID: sarah.ID})
	mustCreate(t, d, models.CreateUserInput{Email: "carol@example.com", Password: "password123", Name: "Carol", Role: models.RoleMember, ManagerID: michael.ID})

	all, err := d.ListUsers(ctx)
	if err != nil || len(all) != 5 {
		t.Fatalf("ListUsers = %d, %v", len(all), err)
	}

	team, err := d.ListByManager(ctx, sarah.ID)
	if err != nil || len(team) != 2 {
		t.Fatalf("ListByManager = %+v, %v", team, err)
	}

	found, err := d.FindUsersByIDs(ctx, []string{alice.ID, alice.ID, "ghost", ""})
	if err != nil {
		t.Fatalf("FindUsersByIDs: %v", err)
	}
	if len(found) != 1 || found[0] != (models.UserSummary{ID: alice.ID, Name: "Alice", Email: "alice@example.com"}) {
		t.Fatalf("found = %+v", found)
	}
}

func TestFindUsersByIDsChunks(t *testing.T) {
	d, store := newDirectory(t)
	ctx := context.Background()
	manager := mustCreate(t, d, models.CreateUserInput{Email: "m@example.com", Password: "password123", Name: "M", Role: models.RoleManager})

	ids := []string{manager.ID}
	for i := 0; i < 120; i++ {
		ids = append(ids, fmt.Sprintf("missing-%d", i))
	}

	found, err := d.FindUsersByIDs(ctx, ids)
	if err != nil || len(found) != 1 {
		t.Fatalf("FindUsersByIDs = %d, %v", len(found), err)
	}
	if got := store.Calls("BatchGetItem"); got != 2 {
		t.Fatalf("BatchGetItem calls = %d, want 2", got)
	}
}

func TestRemove(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()
	sarah := mustCreate(t, d, models.CreateUserInput{Email: "sarah@example.com", Password: "password123", Name: "Sarah", Role: models.RoleManager})
	mustCreate(t, d, models.CreateUserInput{Email: "mike@example.com", Password: "password123", Name: "Mike", Role: models.RoleManager})

	removed, err := d.RemoveByID(ctx, sarah.ID)
	if err != nil || removed.ID != sarah.ID {
		t.Fatalf("RemoveByID = %+v, %v", removed, err)
	}
	if _, err := d.RemoveByID(ctx, sarah.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("second RemoveByID = %v", err)
	}
	if _, err := d.RemoveByID(ctx, "ghost"); !apperrors.IsNotFound(err) {
		t.Fatalf("RemoveByID(unknown) = %v", err)
	}

	if _, err := d.RemoveByEmail(ctx, "mike@example.com"); err != nil {
		t.Fatalf("RemoveByEmail: %v", err)
	}
	if _, err := d.GetByEmail(ctx, "mike@example.com"); !apperrors.IsNotFound(err) {
		t.Fatalf("GetByEmail after removal = %v", err)
	}
}

func TestStoreFailureIsWrapped(t *testing.T) {
	d, store := newDirectory(t)
	store.FailOn("GetItem", errors.New("throttled"))

	_, err := d.GetByID(context.Background(), "any")
	if apperrors.CodeOf(err) != apperrors.CodeDatabaseError {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
}

type memoryCache struct {
	data    map[string]models.UserSummary
	readErr error
	deleted []string
}

func (m *memoryCache) GetMany(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := map[string]models.UserSummary{}
	for _, id := range ids {
		if u, ok := m.data[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memoryCache) SetMany(ctx context.Context, users []models.UserSummary) error {
	for _, u := range users {
		m.data[u.ID] = u
	}
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		delete(m.data, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

func TestCachedDirectory(t *testing.T) {
	inner, store := newDirectory(t)
	ctx := context.Background()
	sarah := mustCreate(t, inner, models.CreateUserInput{Email: "sarah@example.com", Password: "password123", Name: "Sarah", Role: models.RoleManager})

	cache := &memoryCache{data: map[string]models.UserSummary{}}
	d := NewCachedDirectory(inner, cache, logger.NewNop())

	if _, err := d.FindUsersByIDs(ctx, []string{sarah.ID}); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if _, ok := cache.data[sarah.ID]; !ok {
		t.Fatalf("summary not cached")
	}

	calls := store.Calls("BatchGetItem")
	found, err := d.FindUsersByIDs(ctx, []string{sarah.ID})
	if err != nil || len(found) != 1 || found[0].Name != "Sarah" {
		t.Fatalf("cached lookup = %+v, %v", found, err)
	}
	if store.Calls("BatchGetItem") != calls {
		t.Fatalf("cache hit still read the store")
	}

	cache.readErr = errors.New("redis down")
	if found, err := d.FindUsersByIDs(ctx, []string{sarah.ID}); err != nil || len(found) != 1 {
		t.Fatalf("lookup with broken cache = %+v, %v", found, err)
	}
	cache.readErr = nil

	if _, err := d.RemoveByID(ctx, sarah.ID); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != sarah.ID {
		t.Fatalf("deleted = %v", cache.deleted)
	}
}
