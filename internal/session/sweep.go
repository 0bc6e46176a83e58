package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"permitflow/internal/logging"
)

// SweepResult contains the outcome of one abandonment sweep.
type SweepResult struct {
	Destroyed   []string
	RemovedDirs []string
	Errors      []SweepError
}

// SweepError pairs a session or path with its sweep error.
type SweepError struct {
	Target string
	Err    error
}

// Sweep tears down sessions whose last activity is older than maxAge and
// removes directories under the sessions root that no session row claims.
// It never touches a session that still holds its stage slot.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) SweepResult {
	result := SweepResult{}
	cutoff := time.Now().Add(-maxAge)

	for _, userID := range s.staleCandidates(ctx, cutoff, &result) {
		if sess, ok := s.Get(userID); ok {
			if !sess.stageMu.TryLock() {
				continue
			}
			sess.stageMu.Unlock()
		}
		if err := s.Destroy(ctx, userID); err != nil {
			result.Errors = append(result.Errors, SweepError{Target: userID, Err: err})
			s.logger.Warn("failed to destroy stale session",
				logging.String(logging.FieldUser, userID),
				logging.Error(err))
			continue
		}
		result.Destroyed = append(result.Destroyed, userID)
		s.logger.Info("destroyed stale session", logging.String(logging.FieldUser, userID))
	}

	s.sweepOrphanDirs(&result)
	return result
}

func (s *Store) staleCandidates(ctx context.Context, cutoff time.Time, result *SweepResult) []string {
	summaries, err := s.Summaries(ctx)
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Target: s.path, Err: err})
		return nil
	}
	var stale []string
	for _, sum := range summaries {
		last := sum.UpdatedAt
		if sess, ok := s.Get(sum.UserID); ok {
			last = sess.LastUsed()
		}
		if last.Before(cutoff) {
			stale = append(stale, sum.UserID)
		}
	}
	return stale
}

func (s *Store) sweepOrphanDirs(result *SweepResult) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Target: s.rootDir, Err: err})
		}
		return
	}

	claimed := make(map[string]struct{})
	rows, err := s.db.Query("SELECT dir FROM sessions")
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Target: s.path, Err: fmt.Errorf("query session dirs: %w", err)})
		return
	}
	for rows.Next() {
		var dir string
		if scanErr := rows.Scan(&dir); scanErr != nil {
			rows.Close()
			result.Errors = append(result.Errors, SweepError{Target: s.path, Err: scanErr})
			return
		}
		claimed[filepath.Clean(dir)] = struct{}{}
	}
	rows.Close()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(s.rootDir, entry.Name())
		if _, ok := claimed[filepath.Clean(dirPath)]; ok {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Target: dirPath, Err: err})
			s.logger.Warn("failed to remove orphaned session directory",
				logging.String("dir", dirPath),
				logging.Error(err))
			continue
		}
		result.RemovedDirs = append(result.RemovedDirs, dirPath)
		s.logger.Info("removed orphaned session directory", logging.String("dir", dirPath))
	}
}
