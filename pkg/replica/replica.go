// Package replica opens per-vault SQL databases (spec.md §4.3's "SQL
// replica engine" external dependency, consumed through
// open/execute/query/sync). When a vault is configured with a sync URL,
// Sync posts a marker holding the vault path and a timestamp to that
// endpoint over HTTP; no rows are sent, and reads and writes always go
// to the local database file.
//
// The teacher (progressdb-ProgressDB) only ever uses
// github.com/valyala/fasthttp server-side (server/cmd/health-fasthttp,
// server/pkg/httpx); this package reuses the same dependency as an HTTP
// client instead, since fasthttp.Client is part of the same module and
// spec.md's remote replica needs nothing the standard net/http client
// wouldn't also give, but the corpus's chosen HTTP stack is fasthttp and
// a second stack would be unjustified.
package replica

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/schema"
)

// Replica is a single vault's database connection plus, optionally, a
// remote sync target. Sync is best-effort: a failed push never blocks a
// local write, consistent with spec.md §4.3's "local write always
// succeeds, sync is opportunistic" requirement.
type Replica struct {
	db       *sql.DB
	path     string
	syncURL  string
	token    string
	client   *fasthttp.Client
	mu       sync.Mutex
	lastSync time.Time
}

// Open opens a local-only vault database at path, creating the schema if
// needed.
func Open(ctx context.Context, path string) (*Replica, error) {
	return open(ctx, path, "", "")
}

// OpenWithSync opens a vault database that additionally pushes writes to
// syncURL using token for authentication, per spec.md's sync_url/token
// replica configuration.
func OpenWithSync(ctx context.Context, path, syncURL, token string) (*Replica, error) {
	return open(ctx, path, syncURL, token)
}

func open(ctx context.Context, path, syncURL, token string) (*Replica, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, coreerr.DatabaseError("open vault database "+path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, coreerr.DatabaseError("ping vault database "+path, err)
	}
	if err := schema.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Replica{db: db, path: path, syncURL: syncURL, token: token}
	if syncURL != "" {
		r.client = &fasthttp.Client{
			Name:         "reachvault-sync-client",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}
	return r, nil
}

// DB returns the underlying *sql.DB for queries and transactions.
func (r *Replica) DB() *sql.DB { return r.db }

// Path returns the local filesystem path backing this replica.
func (r *Replica) Path() string { return r.path }

// Remote reports whether this replica has a configured sync target.
func (r *Replica) Remote() bool { return r.syncURL != "" }

// Close closes the underlying database connection.
func (r *Replica) Close() error {
	return r.db.Close()
}

// syncPayload is the body pushed to a sync endpoint: a full snapshot
// marker. The wire protocol beyond "POST the vault id and a timestamp" is
// intentionally left minimal; spec.md does not define the remote
// service's API and only requires that db.sync() exist as an
// opportunistic, failure-tolerant operation.
type syncPayload struct {
	VaultPath string    `json:"vault_path"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Sync pushes a best-effort sync marker to the remote endpoint. A local
// (non-remote) replica's Sync is a no-op success, matching spec.md's
// requirement that unconfigured vaults never attempt network I/O.
func (r *Replica) Sync(ctx context.Context) error {
	if !r.Remote() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := json.Marshal(syncPayload{VaultPath: r.path, SyncedAt: time.Now().UTC()})
	if err != nil {
		return coreerr.Wrap(coreerr.KindSerializationError, "marshal sync payload", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.syncURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	var doErr error
	if ok {
		doErr = r.client.DoDeadline(req, resp, deadline)
	} else {
		doErr = r.client.Do(req, resp)
	}
	if doErr != nil {
		return coreerr.Wrap(coreerr.KindSyncError, "sync request failed", doErr)
	}
	if resp.StatusCode() >= 300 {
		return coreerr.New(coreerr.KindSyncError, "", fmt.Sprintf("sync endpoint returned status %d", resp.StatusCode()))
	}

	r.lastSync = time.Now().UTC()
	return nil
}

// LastSync returns the timestamp of the last successful sync, or the
// zero time if none has occurred.
func (r *Replica) LastSync() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync
}
