package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// openTestStore starts a throwaway Postgres container and opens a Store on it.
// It needs Docker and is skipped in short mode or when Docker is missing.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	ctx := context.Background()

	// testcontainers panics when no Docker socket is found.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		cli, err := testcontainers.NewDockerClientWithOpts(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()
		_, err = cli.Ping(ctx)
		return err
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("overlay_test"),
		postgres.WithUsername("overlay"),
		postgres.WithPassword("overlay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	s, err := OpenStore(ctx, connStr)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestStoreIntegration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ff5 := NewScript([]Entry{
		{Speaker: "Bartz", Text: "Bartz: Huh?"},
		{Speaker: "Lenna", Text: "Lenna: Father..."},
		{Speaker: "Boko", Text: "Boko: Kweh!"},
	})
	other := NewScript([]Entry{{Speaker: "Cid", Text: "Cid: Hmm..."}})

	if err := s.Import(ctx, "ff5", ff5); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := s.Import(ctx, "other", other); err != nil {
		t.Fatalf("Import other: %v", err)
	}

	t.Run("round trip keeps order and ids", func(t *testing.T) {
		got, err := s.Load(ctx, "ff5")
		if err != nil {
			t.Fatal(err)
		}
		want := ff5.Entries()
		if got.Len() != len(want) {
			t.Fatalf("Len = %d, want %d", got.Len(), len(want))
		}
		for i, e := range got.Entries() {
			if e.ID != i || e.Speaker != want[i].Speaker || e.Text != want[i].Text {
				t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
			}
		}
	})

	t.Run("import replaces the named script only", func(t *testing.T) {
		replacement := NewScript([]Entry{
			{Speaker: "Faris", Text: "Faris: Move it!"},
			{Speaker: "Galuf", Text: "Galuf: Ugh..."},
		})
		if err := s.Import(ctx, "ff5", replacement); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, "ff5")
		if err != nil {
			t.Fatal(err)
		}
		if got.Len() != 2 {
			t.Fatalf("Len = %d, want 2", got.Len())
		}
		if e, _ := got.Get(0); e.Speaker != "Faris" {
			t.Errorf("first line = %+v, want Faris", e)
		}
		if e, _ := got.Get(1); e.Speaker != "Galuf" {
			t.Errorf("second line = %+v, want Galuf", e)
		}
		if n, err := s.Count(ctx, "other"); err != nil || n != 1 {
			t.Errorf("Count(other) = %d, %v; want 1", n, err)
		}
	})

	t.Run("ids are dense after position gaps", func(t *testing.T) {
		if _, err := s.conn.Exec(ctx,
			"INSERT INTO script_lines (script, position, speaker, dialogue) VALUES ('gaps', 10, 'Mid', 'Mid: Grandpa!'), ('gaps', 3, 'King', 'King: Go now.')"); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, "gaps")
		if err != nil {
			t.Fatal(err)
		}
		first, _ := got.Get(0)
		second, ok := got.Get(1)
		if first.Speaker != "King" || !ok || second.Speaker != "Mid" || second.ID != 1 {
			t.Errorf("entries = %+v", got.Entries())
		}
	})

	t.Run("count and missing script", func(t *testing.T) {
		if n, err := s.Count(ctx, "ff5"); err != nil || n != 2 {
			t.Errorf("Count(ff5) = %d, %v; want 2", n, err)
		}
		if n, err := s.Count(ctx, "nope"); err != nil || n != 0 {
			t.Errorf("Count(nope) = %d, %v; want 0", n, err)
		}
		if _, err := s.Load(ctx, "nope"); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("Load(nope) err = %v, want ErrNoRows", err)
		}
	})
}
