package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/validator-dashboard/internal/models"
)

var networkNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ErrInvalidNetworkName is returned when a network name cannot form a table name
var ErrInvalidNetworkName = errors.New("invalid network name")

// snapshotColumns is the projection shared by every per-network query
const snapshotColumns = `
	id,
	validator_addr,
	self_delegations,
	external_delegations,
	rewards,
	COALESCE(total_rewards, ''),
	price,
	timestamp`

const aggregateColumns = `
	total_self_delegations_usd,
	total_external_delegations_usd,
	total_rewards_usd,
	timestamp`

// SnapshotRepository reads validator snapshots from the per-network
// <network>_data tables and the cross-network total_rewards table
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{
		pool: pool,
	}
}

// TableName returns the quoted table name holding a network's snapshots
func TableName(network string) (string, error) {
	if !networkNamePattern.MatchString(network) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNetworkName, network)
	}
	return pgx.Identifier{network + "_data"}.Sanitize(), nil
}

// History returns a network's snapshots with timestamp >= since, oldest first
func (r *SnapshotRepository) History(ctx context.Context, network string, since time.Time) ([]models.Snapshot, error) {
	table, err := TableName(network)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC
	`, snapshotColumns, table)

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s history: %w", network, err)
	}
	return collectSnapshots(rows, network)
}

// Latest returns the most recent snapshot of a network, or nil when the
// table is empty
func (r *SnapshotRepository) Latest(ctx context.Context, network string) (*models.Snapshot, error) {
	table, err := TableName(network)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, snapshotColumns, table)

	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, query), network)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest %s snapshot: %w", network, err)
	}
	return snapshot, nil
}

// LatestPerValidator returns the newest snapshot of every validator address
func (r *SnapshotRepository) LatestPerValidator(ctx context.Context, network string) ([]models.Snapshot, error) {
	table, err := TableName(network)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (validator_addr) %s
		FROM %s
		ORDER BY validator_addr, timestamp DESC, id DESC
	`, snapshotColumns, table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s validators: %w", network, err)
	}
	return collectSnapshots(rows, network)
}

// AggregateHistory returns cross-network totals with timestamp >= since
func (r *SnapshotRepository) AggregateHistory(ctx context.Context, since time.Time) ([]models.AggregateTotals, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM total_rewards
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate history: %w", err)
	}
	defer rows.Close()

	var totals []models.AggregateTotals
	for rows.Next() {
		var t models.AggregateTotals
		if err := rows.Scan(
			&t.TotalSelfDelegationsUSD,
			&t.TotalExternalDelegationsUSD,
			&t.TotalRewardsUSD,
			&t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate rows: %w", err)
	}

	return totals, nil
}

// AggregateLatest returns the newest cross-network totals, or nil
func (r *SnapshotRepository) AggregateLatest(ctx context.Context) (*models.AggregateTotals, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM total_rewards
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	var t models.AggregateTotals
	err := r.pool.QueryRow(ctx, query).Scan(
		&t.TotalSelfDelegationsUSD,
		&t.TotalExternalDelegationsUSD,
		&t.TotalRewardsUSD,
		&t.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest aggregate: %w", err)
	}
	return &t, nil
}

// Insert stores a snapshot in its network table. Collectors normally write
// these rows; the dashboard uses Insert for seeding and integration tests.
func (r *SnapshotRepository) Insert(ctx context.Context, s *models.Snapshot) error {
	table, err := TableName(s.Network)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			validator_addr,
			self_delegations,
			external_delegations,
			rewards,
			total_rewards,
			price,
			timestamp
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id
	`, table)

	err = r.pool.QueryRow(
		ctx,
		query,
		s.ValidatorAddr,
		s.SelfDelegations,
		s.ExternalDelegations,
		s.Rewards,
		s.TotalRewards,
		s.Price,
		s.Timestamp,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert %s snapshot: %w", s.Network, err)
	}
	return nil
}

func scanSnapshot(row pgx.Row, network string) (*models.Snapshot, error) {
	s := models.Snapshot{Network: network}
	if err := row.Scan(
		&s.ID,
		&s.ValidatorAddr,
		&s.SelfDelegations,
		&s.ExternalDelegations,
		&s.Rewards,
		&s.TotalRewards,
		&s.Price,
		&s.Timestamp,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSnapshots(rows pgx.Rows, network string) ([]models.Snapshot, error) {
	defer rows.Close()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows, network)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s snapshot row: %w", network, err)
		}
		snapshots = append(snapshots, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s snapshot rows: %w", network, err)
	}

	return snapshots, nil
}
