package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAuthBlob writes the singleton (per-upstream) authentication blob.
// SessionKey is expected to already be encrypted by
// internal/authstore; the catalog itself never interprets it.
func (s *Store) UpsertAuthBlob(ctx context.Context, b AuthBlob) error {
	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_blobs (upstream, device_id, user_id, session_key, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (upstream) DO UPDATE SET
			device_id=excluded.device_id, user_id=excluded.user_id,
			session_key=excluded.session_key, updated_at=excluded.updated_at`,
		b.Upstream, nullable(b.DeviceID), nullable(b.UserID), nullable(b.SessionKey), now, now)
	if err != nil {
		return fmt.Errorf("catalog: upsert auth blob %s: %w", b.Upstream, err)
	}
	return nil
}

// AuthBlobByUpstream fetches the singleton auth blob for an upstream, or nil
// if none has been created yet.
func (s *Store) AuthBlobByUpstream(ctx context.Context, upstream string) (*AuthBlob, error) {
	var (
		b                         AuthBlob
		deviceID, userID, session sql.NullString
		created, updated          string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT upstream, device_id, user_id, session_key, created_at, updated_at
		FROM auth_blobs WHERE upstream = ?`, upstream)
	if err := row.Scan(&b.Upstream, &deviceID, &userID, &session, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: auth blob %s: %w", upstream, err)
	}
	b.DeviceID, b.UserID, b.SessionKey = deviceID.String, userID.String, session.String
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteAuthBlob removes the singleton auth blob, forcing the next ingester
// run to re-authenticate. Blobs are otherwise reused until this explicit
// force-reauth.
func (s *Store) DeleteAuthBlob(ctx context.Context, upstream string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_blobs WHERE upstream = ?`, upstream)
	if err != nil {
		return fmt.Errorf("catalog: delete auth blob %s: %w", upstream, err)
	}
	return nil
}
