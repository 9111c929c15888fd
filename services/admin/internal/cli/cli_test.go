package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/proto"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/database/dynamotest"
	"github.com/Sakethtadimeti/checkin-app/common/directory"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
)

type publishedEvent struct {
	subject string
	event   *commonevents.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishProto(_ context.Context, subject string, msg proto.Message) error {
	if p.err != nil {
		return p.err
	}
	raw, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	ev, err := commonevents.Decode(raw)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, event: ev})
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}

type fixture struct {
	admin  *Admin
	store  *dynamotest.Store
	out    *bytes.Buffer
	events *recordingPublisher
}

func newFixture(t *testing.T, withTables bool) *fixture {
	t.Helper()

	store := dynamotest.New()
	if withTables {
		if _, err := database.EnsureTables(context.Background(), store, database.TableDefinitions("users", "checkins", database.Capacity{}), false); err != nil {
			t.Fatalf("EnsureTables: %v", err)
		}
	}

	clk := clock.NewFixed(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	db := database.NewWithAPI(store, "users", "checkins")
	out := &bytes.Buffer{}
	events := &recordingPublisher{}

	return &fixture{
		admin: &Admin{
			Out:           out,
			Store:         store,
			UsersTable:    "users",
			CheckInsTable: "checkins",
			Directory:     directory.NewDirectory(db, clk, bcrypt.MinCost),
			Events:        events,
			Validator:     validation.Default(),
			Clock:         clk,
			Logger:        logger.NewNop(),
		},
		store:  store,
		out:    out,
		events: events,
	}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	f.out.Reset()
	return f.admin.Run(context.Background(), args)
}

func TestTablesLifecycle(t *testing.T) {
	f := newFixture(t, false)

	if err := f.run(t, "tables", "verify"); err == nil || !strings.Contains(err.Error(), "missing tables") {
		t.Fatalf("verify before setup: %v", err)
	}

	if err := f.run(t, "tables", "setup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(f.out.String(), "Created table users") || !strings.Contains(f.out.String(), "Created table checkins") {
		t.Fatalf("setup output:\n%s", f.out.String())
	}

	if err := f.run(t, "tables", "setup"); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if !strings.Contains(f.out.String(), "2 table(s) already existed") {
		t.Fatalf("second setup output:\n%s", f.out.String())
	}

	if err := f.run(t, "tables", "verify"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(f.out.String(), "created-by-index") || !strings.Contains(f.out.String(), "email-index") {
		t.Fatalf("verify output:\n%s", f.out.String())
	}

	if err := f.run(t, "tables", "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Count(f.out.String(), "\n") != 2 {
		t.Fatalf("list output:\n%s", f.out.String())
	}

	if err := f.run(t, "tables", "drop"); !errors.Is(err, ErrUsage) {
		t.Fatalf("drop without --yes: %v", err)
	}
	if err := f.run(t, "tables", "drop", "--yes", "checkins"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := f.run(t, "tables", "verify"); err == nil || !strings.Contains(err.Error(), "checkins") {
		t.Fatalf("verify after drop: %v", err)
	}

	if err := f.run(t, "tables", "setup", "nope"); !errors.Is(err, ErrUsage) {
		t.Fatalf("setup unknown table: %v", err)
	}
}

func TestUsersAddListRemove(t *testing.T) {
	f := newFixture(t, true)

	if err := f.run(t, "users", "add", "--email", "Sarah@Example.com", "--password", "password123", "--name", "Sarah Johnson", "--role", "manager", "--team-id", "engineering-team"); err != nil {
		t.Fatalf("add manager: %v", err)
	}
	manager, err := f.admin.Directory.GetByEmail(context.Background(), "sarah@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	if err := f.run(t, "users", "add", "--email", "alex@example.com", "--password", "password123", "--name", "Alex", "--role", "member", "--manager-id", manager.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := f.run(t, "users", "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(f.out.String(), "2 user(s)") || strings.Contains(f.out.String(), "$2a$") {
		t.Fatalf("list output:\n%s", f.out.String())
	}

	if err := f.run(t, "users", "remove", "--email", "alex@example.com"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.admin.Directory.GetByEmail(context.Background(), "alex@example.com"); err == nil {
		t.Fatalf("removed user still present")
	}

	got := f.events.subjects()
	want := []string{commonevents.UserCreated, commonevents.UserCreated, commonevents.UserRemoved}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("subjects = %v, want %v", got, want)
	}
	if last := f.events.events[2].event; last.String("email") != "alex@example.com" || last.String("managerId") != manager.ID {
		t.Fatalf("removed event = %+v", last.Data)
	}
}

func TestUsersRejected(t *testing.T) {
	f := newFixture(t, true)
	if err := f.run(t, "users", "add", "--email", "sarah@example.com", "--password", "password123", "--name", "Sarah", "--role", "manager"); err != nil {
		t.Fatalf("seed manager: %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		usage bool
		want  string
	}{
		{"bad role", []string{"users", "add", "--email", "x@example.com", "--password", "password123", "--name", "X", "--role", "admin"}, false, "role"},
		{"short password", []string{"users", "add", "--email", "x@example.com", "--password", "abc", "--name", "X", "--role", "manager"}, false, "password"},
		{"member without manager", []string{"users", "add", "--email", "x@example.com", "--password", "password123", "--name", "X", "--role", "member"}, false, "Members must have a managerId"},
		{"duplicate email", []string{"users", "add", "--email", "sarah@example.com", "--password", "password123", "--name", "S", "--role", "manager"}, false, "already exists"},
		{"remove needs one selector", []string{"users", "remove"}, true, "exactly one"},
		{"remove both selectors", []string{"users", "remove", "--id", "a", "--email", "b@example.com"}, true, "exactly one"},
		{"remove unknown", []string{"users", "remove", "--email", "ghost@example.com"}, false, "user not found"},
		{"unknown flag", []string{"users", "list", "--bogus"}, true, "bogus"},
		{"unknown command", []string{"reports"}, true, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.run(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrUsage) != tt.usage {
				t.Fatalf("usage error = %v for %v", errors.Is(err, ErrUsage), err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if n := len(f.events.subjects()); n != 1 {
		t.Fatalf("rejected commands published %d extra events", n-1)
	}
}

func TestSeed(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.admin.Directory.CreateUser(ctx, models.CreateUserInput{
		Email: "sarah.johnson@company.com", Password: "existing", Name: "Sarah Johnson", Role: models.RoleManager,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := f.run(t, "seed", "--password", "demo-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(f.out.String(), "11 created, 1 skipped") {
		t.Fatalf("seed output:\n%s", f.out.String())
	}

	sarah, _ := f.admin.Directory.GetByEmail(ctx, "sarah.johnson@company.com")
	team, err := f.admin.Directory.ListByManager(ctx, sarah.ID)
	if err != nil || len(team) != 5 {
		t.Fatalf("engineering team = %v, %v", team, err)
	}

	michael, _ := f.admin.Directory.GetByEmail(ctx, "michael.chen@company.com")
	if michael.TeamID != "product-team" || michael.Role != models.RoleManager {
		t.Fatalf("michael = %+v", michael)
	}
	if _, err := f.admin.Directory.Authenticate(ctx, "ava.brown@company.com", "demo-pass"); err != nil {
		t.Fatalf("seeded password not applied: %v", err)
	}

	if err := f.run(t, "seed"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(f.out.String(), "0 created, 12 skipped") {
		t.Fatalf("second seed output:\n%s", f.out.String())
	}
	if n := len(f.events.subjects()); n != 11 {
		t.Fatalf("published %d events, want 11", n)
	}
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	f := newFixture(t, true)
	f.events.err = errors.New("nats unavailable")

	if err := f.run(t, "users", "add", "--email", "sarah@example.com", "--password", "password123", "--name", "Sarah", "--role", "manager"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.admin.Directory.GetByEmail(context.Background(), "sarah@example.com"); err != nil {
		t.Fatalf("user not stored: %v", err)
	}
}

func TestHelp(t *testing.T) {
	f := newFixture(t, false)

	if err := f.run(t, "--help"); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"tables", "users", "seed"} {
		if !strings.Contains(f.out.String(), name) {
			t.Fatalf("help missing %q:\n%s", name, f.out.String())
		}
	}

	if err := f.run(t, "users", "add", "--help"); err != nil {
		t.Fatalf("users add --help: %v", err)
	}
	if !strings.Contains(f.out.String(), "--manager-id") {
		t.Fatalf("flag help:\n%s", f.out.String())
	}

	if err := f.run(t); !errors.Is(err, ErrUsage) {
		t.Fatalf("no args: %v", err)
	}
}
