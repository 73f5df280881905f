package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// MySQLStore is the database/sql-backed implementation of Store.
type MySQLStore struct {
	db     *sql.DB
	logger config.Logger
}

// NewMySQLStore opens a connection pool against cfg.Store.DSN and applies
// pending migrations before returning.
func NewMySQLStore(cfg *config.Config, logger config.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}
	db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Store.MaxIdleConns)

	if err := RunMigrations(db, cfg.Store.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// RegisterModule is the single transaction covering the optional schema
// upsert and the module upsert, keyed on the deterministic ids.
func (s *MySQLStore) RegisterModule(ctx context.Context, serviceName, host string, port int, version string, metadata map[string]any, jsonSchema string) (*model.ServiceModule, error) {
	serviceID := model.ServiceID(serviceName, host, port)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	var configSchemaID string
	if jsonSchema != "" {
		schemaID := model.SchemaID(serviceName, version)
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config_schemas (schema_id, service_name, schema_version, json_schema, created_at, sync_status)
			VALUES (?, ?, ?, ?, ?, 'PENDING')
			ON DUPLICATE KEY UPDATE json_schema = VALUES(json_schema)
		`, schemaID, serviceName, versionOrDefault(version), jsonSchema, now)
		if err != nil {
			return nil, fmt.Errorf("写入模式失败: %w", err)
		}
		configSchemaID = schemaID
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("序列化元数据失败: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO modules (service_id, service_name, host, port, version, config_schema_id, metadata, registered_at, last_heartbeat, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'ACTIVE')
		ON DUPLICATE KEY UPDATE
			version = VALUES(version),
			config_schema_id = COALESCE(VALUES(config_schema_id), config_schema_id),
			metadata = VALUES(metadata),
			last_heartbeat = VALUES(last_heartbeat),
			status = 'ACTIVE'
	`, serviceID, serviceName, host, port, version, nullableString(configSchemaID), metaJSON, now, now)
	if err != nil {
		return nil, fmt.Errorf("写入服务模块失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	return s.FindByID(ctx, serviceID)
}

func versionOrDefault(v string) string {
	if v == "" {
		return "1"
	}
	return v
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveSchema inserts a new ConfigSchema row. The mirror-then-mark-status
// dance happens in the orchestrator, not here.
func (s *MySQLStore) SaveSchema(ctx context.Context, serviceName, version, jsonSchema, createdBy string) (*model.ConfigSchema, error) {
	schemaID := model.SchemaID(serviceName, version)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_schemas (schema_id, service_name, schema_version, json_schema, created_at, created_by, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, 'PENDING')
		ON DUPLICATE KEY UPDATE json_schema = VALUES(json_schema)
	`, schemaID, serviceName, versionOrDefault(version), jsonSchema, now, nullableString(createdBy))
	if err != nil {
		return nil, fmt.Errorf("保存模式失败: %w", err)
	}

	return s.FindSchemaByID(ctx, schemaID)
}

func (s *MySQLStore) transitionSyncStatus(ctx context.Context, schemaID string, next model.SyncStatus, mutate func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT sync_status FROM config_schemas WHERE schema_id = ?`, schemaID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !model.SyncStatus(current).CanTransitionTo(next) {
		return fmt.Errorf("非法的同步状态转移: %s -> %s", current, next)
	}

	if err := mutate(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *MySQLStore) MarkSchemaSynced(ctx context.Context, schemaID, artifactID string, artifactGlobalID int64) error {
	return s.transitionSyncStatus(ctx, schemaID, model.SyncStatusSynced, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE config_schemas
			SET sync_status = 'SYNCED', artifact_id = ?, artifact_global_id = ?, last_sync_attempt = ?, sync_error = NULL
			WHERE schema_id = ?
		`, artifactID, artifactGlobalID, time.Now().UTC(), schemaID)
		return err
	})
}

func (s *MySQLStore) MarkSchemaFailed(ctx context.Context, schemaID, syncError string) error {
	return s.transitionSyncStatus(ctx, schemaID, model.SyncStatusFailed, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE config_schemas
			SET sync_status = 'FAILED', last_sync_attempt = ?, sync_error = ?
			WHERE schema_id = ?
		`, time.Now().UTC(), syncError, schemaID)
		return err
	})
}

func (s *MySQLStore) UpdateHeartbeat(ctx context.Context, serviceID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE modules SET last_heartbeat = ?, status = 'ACTIVE' WHERE service_id = ?`, time.Now().UTC(), serviceID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *MySQLStore) MarkUnhealthy(ctx context.Context, serviceID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE modules SET status = 'UNHEALTHY' WHERE service_id = ?`, serviceID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnregisterModule deletes the row if present. Per the spec's resolved
// open question, this is the only path that deletes a ServiceModule row;
// UnregisterService/UnregisterModule RPCs never call it.
func (s *MySQLStore) UnregisterModule(ctx context.Context, serviceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE service_id = ?`, serviceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MySQLStore) scanModules(rows *sql.Rows) ([]*model.ServiceModule, error) {
	defer rows.Close()
	var out []*model.ServiceModule
	for rows.Next() {
		m, err := scanModuleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModuleRow(row rowScanner) (*model.ServiceModule, error) {
	var m model.ServiceModule
	var configSchemaID sql.NullString
	var metaJSON []byte
	var version sql.NullString

	if err := row.Scan(&m.ServiceID, &m.ServiceName, &m.Host, &m.Port, &version, &configSchemaID, &metaJSON, &m.RegisteredAt, &m.LastHeartbeat, &m.Status); err != nil {
		return nil, err
	}
	m.Version = version.String
	m.ConfigSchemaID = configSchemaID.String
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

const selectModuleColumns = `service_id, service_name, host, port, version, config_schema_id, metadata, registered_at, last_heartbeat, status`

func (s *MySQLStore) FindByID(ctx context.Context, serviceID string) (*model.ServiceModule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectModuleColumns+` FROM modules WHERE service_id = ?`, serviceID)
	m, err := scanModuleRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *MySQLStore) GetActiveServices(ctx context.Context) ([]*model.ServiceModule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectModuleColumns+` FROM modules WHERE status = 'ACTIVE'`)
	if err != nil {
		return nil, err
	}
	return s.scanModules(rows)
}

func (s *MySQLStore) GetAllServices(ctx context.Context) ([]*model.ServiceModule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectModuleColumns+` FROM modules`)
	if err != nil {
		return nil, err
	}
	return s.scanModules(rows)
}

func (s *MySQLStore) FindStaleServices(ctx context.Context, before time.Time) ([]*model.ServiceModule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectModuleColumns+` FROM modules WHERE status = 'ACTIVE' AND last_heartbeat < ?`, before)
	if err != nil {
		return nil, err
	}
	return s.scanModules(rows)
}

func (s *MySQLStore) CountServicesByStatus(ctx context.Context) (map[model.ServiceStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM modules GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ServiceStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.ServiceStatus(status)] = count
	}
	return counts, rows.Err()
}

const selectSchemaColumns = `schema_id, service_name, schema_version, json_schema, created_at, created_by, artifact_id, artifact_global_id, sync_status, last_sync_attempt, sync_error`

func scanSchemaRow(row rowScanner) (*model.ConfigSchema, error) {
	var c model.ConfigSchema
	var createdBy, artifactID, syncError sql.NullString
	var artifactGlobalID sql.NullInt64
	var lastSyncAttempt sql.NullTime

	if err := row.Scan(&c.SchemaID, &c.ServiceName, &c.SchemaVersion, &c.JSONSchema, &c.CreatedAt, &createdBy, &artifactID, &artifactGlobalID, &c.SyncStatus, &lastSyncAttempt, &syncError); err != nil {
		return nil, err
	}
	c.CreatedBy = createdBy.String
	c.ArtifactID = artifactID.String
	c.ArtifactGlobalID = artifactGlobalID.Int64
	c.SyncError = syncError.String
	if lastSyncAttempt.Valid {
		c.LastSyncAttempt = &lastSyncAttempt.Time
	}
	return &c, nil
}

func (s *MySQLStore) FindSchemaByID(ctx context.Context, schemaID string) (*model.ConfigSchema, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectSchemaColumns+` FROM config_schemas WHERE schema_id = ?`, schemaID)
	c, err := scanSchemaRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *MySQLStore) FindLatestSchemaByServiceName(ctx context.Context, serviceName string) (*model.ConfigSchema, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectSchemaColumns+` FROM config_schemas
		WHERE service_name = ? ORDER BY created_at DESC LIMIT 1
	`, serviceName)
	c, err := scanSchemaRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *MySQLStore) FindSchemasNeedingSync(ctx context.Context) ([]*model.ConfigSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectSchemaColumns+` FROM config_schemas
		WHERE sync_status IN ('PENDING', 'FAILED', 'OUT_OF_SYNC')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ConfigSchema
	for rows.Next() {
		c, err := scanSchemaRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
