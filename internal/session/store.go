package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"permitflow/internal/config"
	"permitflow/internal/fetch"
	"permitflow/internal/logging"
)

// Store manages session handles and their working-set persistence. Records
// and documents scraped during a run are staged in SQLite so stage handoffs
// survive within a run; everything is deleted when the session is torn down.
type Store struct {
	db      *sql.DB
	path    string
	rootDir string
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Open initializes or connects to the session database and reconciles it
// against the sessions directory, dropping rows for directories that no
// longer exist.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:       db,
		path:     dbPath,
		rootDir:  cfg.Paths.SessionsDir,
		logger:   logger.With(logging.String(logging.FieldComponent, "session-store")),
		sessions: make(map[string]*Session),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.pruneOrphans(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ensure returns the live session for userID, creating it (directory, pdf
// subdirectory, and database row) when none exists.
func (s *Store) Ensure(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("session user id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok {
		return existing, nil
	}

	dir := filepath.Join(s.rootDir, fmt.Sprintf("%s_%s", sanitizeDirName(userID), uuid.NewString()[:8]))
	pdfDir := filepath.Join(dir, "pdf")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (user_id, dir, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		userID, dir, string(StateIdle), timestamp, timestamp,
	)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("insert session row: %w", err)
	}

	sess := &Session{
		UserID:    userID,
		Dir:       dir,
		PDFDir:    pdfDir,
		CreatedAt: now,
		state:     StateIdle,
		lastUsed:  now,
	}
	s.sessions[userID] = sess
	s.logger.Info("session created",
		logging.String(logging.FieldUser, userID),
		logging.String("dir", dir))
	return sess, nil
}

// Get returns the live session handle for userID, if any.
func (s *Store) Get(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Active returns all live sessions sorted by user id.
func (s *Store) Active() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// UpdateState moves the session handle and its database row to the given state.
func (s *Store) UpdateState(ctx context.Context, sess *Session, state State) error {
	sess.SetState(state)
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET state = ?, updated_at = ? WHERE user_id = ?",
		string(state), time.Now().UTC().Format(time.RFC3339Nano), sess.UserID,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	return nil
}

// SetWindow records the fetch window so listings can show what a session is
// working on.
func (s *Store) SetWindow(ctx context.Context, userID, district string, start, end int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET district = ?, range_start = ?, range_end = ?, updated_at = ? WHERE user_id = ?",
		district, start, end, time.Now().UTC().Format(time.RFC3339Nano), userID,
	)
	if err != nil {
		return fmt.Errorf("update session window: %w", err)
	}
	return nil
}

// Clear drops the session's records and documents and deletes generated PDFs,
// returning the session to an empty working set. The session itself survives.
func (s *Store) Clear(ctx context.Context, userID string) error {
	sess, ok := s.Get(userID)
	if !ok {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM permit_records WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear permit records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if err := removeDirContents(sess.PDFDir); err != nil {
		return fmt.Errorf("clear pdf directory: %w", err)
	}
	return s.UpdateState(ctx, sess, StateIdle)
}

// Destroy tears the session down: the in-flight run is aborted, database rows
// are deleted, and the session directory is removed. Destroying an unknown
// session is a no-op, so teardown can be retried safely.
func (s *Store) Destroy(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if ok {
		sess.AbortRun()
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	if ok {
		if err := os.RemoveAll(sess.Dir); err != nil {
			return fmt.Errorf("remove session directory: %w", err)
		}
		s.logger.Info("session destroyed", logging.String(logging.FieldUser, userID))
	}
	return nil
}

// AppendRecord stages one fetched permit record at the next position.
func (s *Store) AppendRecord(ctx context.Context, userID string, rec fetch.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permit_records (
            user_id, position, identifier, destination_district,
            destination_address, quantity, generated_on, eligible
        ) VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM permit_records WHERE user_id = ?), ?, ?, ?, ?, ?, 0)`,
		userID, userID,
		rec.Identifier, rec.DestinationDistrict, rec.DestinationAddress,
		rec.Quantity, rec.GeneratedOn.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append permit record: %w", err)
	}
	return nil
}

// Records returns the session's staged records in fetch order.
func (s *Store) Records(ctx context.Context, userID string) ([]fetch.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, destination_district, destination_address, quantity, generated_on
         FROM permit_records WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query permit records: %w", err)
	}
	defer rows.Close()

	var out []fetch.Record
	for rows.Next() {
		var rec fetch.Record
		var generatedOn string
		if err := rows.Scan(&rec.Identifier, &rec.DestinationDistrict, &rec.DestinationAddress, &rec.Quantity, &generatedOn); err != nil {
			return nil, fmt.Errorf("scan permit record: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, generatedOn); parseErr == nil {
			rec.GeneratedOn = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetEligible marks one staged record's eligibility verdict.
func (s *Store) SetEligible(ctx context.Context, userID, identifier string, eligible bool) error {
	val := 0
	if eligible {
		val = 1
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE permit_records SET eligible = ? WHERE user_id = ? AND identifier = ?",
		val, userID, identifier,
	)
	if err != nil {
		return fmt.Errorf("set record eligibility: %w", err)
	}
	return nil
}

// EligibleIdentifiers returns identifiers marked eligible, in fetch order.
func (s *Store) EligibleIdentifiers(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identifier FROM permit_records WHERE user_id = ? AND eligible = 1 ORDER BY position",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query eligible identifiers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddDocument records one generated certificate. Regenerating an identifier
// replaces the previous row.
func (s *Store) AddDocument(ctx context.Context, userID string, doc Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (user_id, identifier, path, created_at)
         VALUES (?, ?, ?, ?)`,
		userID, doc.Identifier, doc.Path, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Documents returns the session's generated certificates sorted by identifier.
func (s *Store) Documents(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identifier, path FROM documents WHERE user_id = ? ORDER BY identifier",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Identifier, &doc.Path); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Summary is one row of the session listing.
type Summary struct {
	UserID     string
	State      string
	District   string
	RangeStart int64
	RangeEnd   int64
	Records    int
	Eligible   int
	Documents  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summaries returns a listing row per session, including sessions left over
// from previous daemon runs that have not been swept yet.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.user_id, u.state, u.district, u.range_start, u.range_end, u.created_at, u.updated_at,
            (SELECT COUNT(1) FROM permit_records r WHERE r.user_id = u.user_id),
            (SELECT COUNT(1) FROM permit_records r WHERE r.user_id = u.user_id AND r.eligible = 1),
            (SELECT COUNT(1) FROM documents d WHERE d.user_id = u.user_id)
         FROM sessions u ORDER BY u.user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query session summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created, updated string
		if err := rows.Scan(&sum.UserID, &sum.State, &sum.District, &sum.RangeStart, &sum.RangeEnd,
			&created, &updated, &sum.Records, &sum.Eligible, &sum.Documents); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			sum.CreatedAt = ts
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
			sum.UpdatedAt = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// pruneOrphans deletes session rows whose directories disappeared, typically
// after a manual cleanup of the sessions directory.
func (s *Store) pruneOrphans(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, dir FROM sessions")
	if err != nil {
		return fmt.Errorf("query sessions for prune: %w", err)
	}
	type row struct{ userID, dir string }
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.userID, &r.dir); err != nil {
			rows.Close()
			return fmt.Errorf("scan session for prune: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range all {
		if _, statErr := os.Stat(r.dir); statErr == nil {
			continue
		}
		if _, delErr := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", r.userID); delErr != nil {
			return fmt.Errorf("prune session row: %w", delErr)
		}
		s.logger.Info("pruned session with missing directory",
			logging.String(logging.FieldUser, r.userID),
			logging.String("dir", r.dir))
	}
	return nil
}

func sanitizeDirName(userID string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, userID)
	if len(mapped) > 32 {
		mapped = mapped[:32]
	}
	return mapped
}

func removeDirContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
