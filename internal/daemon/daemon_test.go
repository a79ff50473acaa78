package daemon

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/api"
	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/config"
	"github.com/matheus3301/gigchat/internal/messenger"
	"github.com/matheus3301/gigchat/internal/profile"
	"github.com/matheus3301/gigchat/internal/realtime"
	"github.com/matheus3301/gigchat/internal/relay"
	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/status"
)

func startRelay(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(relay.NewEngine(relay.NewHub(zap.NewNop())))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// shortTempDir keeps socket paths under the 104-char Unix socket limit.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServerOverSocket(t *testing.T) {
	endpoint := startRelay(t)
	tmpDir := shortTempDir(t, "gc-srv-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	machine := status.NewMachine(b)
	mgr := realtime.NewManager(realtime.Config{Endpoint: endpoint, UserID: "alice", ReconnectDelay: 50 * time.Millisecond}, socket.WebSocketDialer{}, machine, zap.NewNop())
	client := messenger.New(mgr, b, messenger.Options{Self: "alice", TypingDebounce: 20 * time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer client.Stop()
	if err := client.Seed(ctx, chat.Seed{Contacts: []chat.Contact{{ID: "bob", DisplayName: "Bob"}}}); err != nil {
		t.Fatal(err)
	}

	svc := api.NewMessengerService(api.Identity{Profile: "test", UserID: "alice", Endpoint: endpoint}, client, machine, nil, b)
	srv, err := NewServer(Params{ProfileName: "test", SocketPath: socketPath}, zap.NewNop(), svc)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer func() {
		svc.Close()
		srv.Stop(context.Background())
	}()

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 600", perm)
	}

	conn, err := rpc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	waitUntil(t, "connected status", func() bool {
		st, err := conn.GetStatus(ctx)
		return err == nil && st.Connected && st.State == string(status.Online)
	})

	list, err := conn.ListContacts(ctx)
	if err != nil {
		t.Fatalf("ListContacts error = %v", err)
	}
	if len(list.Contacts) != 1 || list.Contacts[0].DisplayName != "Bob" {
		t.Fatalf("contacts = %+v, want [Bob]", list.Contacts)
	}

	stream, err := conn.WatchEvents(ctx, "chat.")
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.SelectContact(ctx, "bob"); err != nil {
		t.Fatalf("SelectContact error = %v", err)
	}
	res, err := conn.SendText(ctx, "is the brief final?")
	if err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	if !chat.IsTempID(res.TempID) {
		t.Errorf("temp id = %q, want local id", res.TempID)
	}

	sawAppend := false
	for !sawAppend {
		evt, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv error = %v", err)
		}
		sawAppend = evt.Kind == bus.KindMessageAppended
	}

	msgs, err := conn.ListMessages(ctx, &rpc.ListMessagesRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].Text != "is the brief final?" {
		t.Errorf("messages = %+v", msgs.Messages)
	}

	// Archive is disabled for this server.
	if _, err := conn.SearchMessages(ctx, &rpc.SearchRequest{Query: "brief"}); err == nil {
		t.Error("expected search to fail without an archive")
	}
}

func TestFxModuleWiring(t *testing.T) {
	tmpDir := shortTempDir(t, "gc-fx-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	mgr := realtime.NewManager(realtime.Config{Endpoint: "ws://127.0.0.1:1/ws", UserID: "fx"}, socket.WebSocketDialer{}, nil, zap.NewNop())
	client := messenger.New(mgr, b, messenger.Options{Self: "fx"}, zap.NewNop())

	p := Params{ProfileName: "fxtest", SocketPath: socketPath}
	srv, err := NewServer(p, zap.NewNop(), api.NewMessengerService(api.Identity{Profile: "fxtest"}, client, status.NewMachine(nil), nil, b))
	if err != nil {
		t.Fatalf("NewServer() with Params failed: %v", err)
	}
	if srv.SocketPath() != socketPath {
		t.Errorf("socket = %q, want %q", srv.SocketPath(), socketPath)
	}
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}

	srv.Stop(context.Background())
	if _, statErr := os.Stat(socketPath); !os.IsNotExist(statErr) {
		t.Errorf("socket still present after Stop: %v", statErr)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	endpoint := startRelay(t)
	home := shortTempDir(t, "gc-home-*")
	t.Setenv(profile.HomeEnv, home)
	for _, k := range []string{config.EnvEndpoint, config.EnvUserID, config.EnvDisplayName, config.EnvLogLevel} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	const name = "work"
	if err := profile.EnsureDir(name); err != nil {
		t.Fatal(err)
	}
	profileTOML := "endpoint = \"" + endpoint + "\"\nseed_file = \"seed.toml\"\nlog_level = \"debug\"\n\n" +
		"[user]\nid = \"alice\"\n\n[realtime]\nreconnect_delay = \"50ms\"\n"
	if err := os.WriteFile(filepath.Join(profile.Dir(name), config.ProfileFile), []byte(profileTOML), 0600); err != nil {
		t.Fatal(err)
	}
	seed := `active = "u-42"

[[contacts]]
id = "u-42"
display_name = "Ana"

[[messages]]
id = "m-1"
contact = "u-42"
from = "u-42"
text = "Hi! I saw your gig."
at = 2024-05-01T10:00:00Z
`
	if err := os.WriteFile(filepath.Join(profile.Dir(name), "seed.toml"), []byte(seed), 0600); err != nil {
		t.Fatal(err)
	}

	socketPath := filepath.Join(home, "d.sock")
	app := fx.New(Module(Params{ProfileName: name, SocketPath: socketPath}), fx.NopLogger)
	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("app start: %v", err)
	}

	conn, err := rpc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	ctx := context.Background()

	waitUntil(t, "daemon online", func() bool {
		st, err := conn.GetStatus(ctx)
		return err == nil && st.Connected
	})
	st, err := conn.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Profile != name || st.UserID != "alice" || st.Active != "u-42" {
		t.Errorf("status = %+v", st)
	}

	msgs, err := conn.ListMessages(ctx, &rpc.ListMessagesRequest{ContactID: "u-42"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].FromMe {
		t.Fatalf("seeded messages = %+v", msgs.Messages)
	}

	if _, err := conn.SendText(ctx, "thanks, sending a quote"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "archived send", func() bool {
		res, err := conn.SearchMessages(ctx, &rpc.SearchRequest{Query: "quote"})
		return err == nil && len(res.Results) == 1
	})

	if err := app.Stop(context.Background()); err != nil {
		t.Fatalf("app stop: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
	if _, err := os.Stat(profile.ArchivePath(name)); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}

func TestSeedFromConfig(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got := seedFromConfig(&config.Seed{
		Active:   "u-1",
		Contacts: []config.SeedContact{{ID: "u-1", DisplayName: "Ana"}},
		Messages: []config.SeedMessage{
			{ID: "m-1", Contact: "u-1", From: "u-1", Text: "hi", At: at},
			{ID: "m-2", Contact: "u-1", Kind: "image", Name: "mock.png", URL: "https://cdn/x.png", Status: "read"},
		},
	})
	if got.Active != "u-1" || len(got.Contacts) != 1 || got.Contacts[0].DisplayName != "Ana" {
		t.Errorf("seed = %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	if m := got.Messages[0]; m.Content.Kind != chat.KindText || m.Content.Text != "hi" || !m.Timestamp.Equal(at) {
		t.Errorf("text message = %+v", m)
	}
	m := got.Messages[1]
	if m.Content.Kind != chat.KindImage || m.Content.Attachment == nil || m.Content.Attachment.URL != "https://cdn/x.png" {
		t.Errorf("image message = %+v", m)
	}
	if m.Status != chat.Read || m.SenderID != "" {
		t.Errorf("status/sender = %q/%q", m.Status, m.SenderID)
	}
}
