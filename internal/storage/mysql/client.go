package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/platformbuilds/escalate-core/internal/config"
)

// Store gives the engine its persistence: alerts, teams, channels,
// delivery and audit records, all over a MySQL-protocol database.
type Store struct {
	DB *sql.DB
}

func dsnFrom(cfg config.Database) string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	pass := cfg.Password
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dbName := cfg.Name
	if dbName == "" {
		dbName = "escalate"
	}

	params := url.Values{}
	params.Set("parseTime", "true")
	if cfg.TLS {
		params.Set("tls", "preferred")
	}
	for k, v := range cfg.Params {
		params.Set(k, v)
	}
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", auth, host, port, dbName, params.Encode())
}

func Connect(cfg config.Database) (*Store, error) {
	dsn := dsnFrom(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
            id VARCHAR(64) NOT NULL,
            title VARCHAR(512) NOT NULL,
            description TEXT,
            severity VARCHAR(16) NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'active',
            team_id VARCHAR(64),
            metric_name VARCHAR(255),
            metric_value DOUBLE,
            threshold_value DOUBLE,
            threshold_operator VARCHAR(8),
            channel_ids JSON,
            escalation_level INT NOT NULL DEFAULT 0,
            next_escalation_at TIMESTAMP NULL,
            last_escalated_at TIMESTAMP NULL,
            context JSON,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
            PRIMARY KEY (id),
            KEY idx_next_escalation (next_escalation_at, status)
        )`,
		`CREATE TABLE IF NOT EXISTS alert_history (
            id VARCHAR(64) NOT NULL,
            alert_id VARCHAR(64) NOT NULL,
            action VARCHAR(64) NOT NULL,
            level INT NOT NULL DEFAULT 0,
            detail TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (id),
            KEY idx_alert (alert_id, created_at)
        )`,
		`CREATE TABLE IF NOT EXISTS teams (
            id VARCHAR(64) NOT NULL,
            name VARCHAR(255) NOT NULL,
            PRIMARY KEY (id)
        )`,
		`CREATE TABLE IF NOT EXISTS team_members (
            team_id VARCHAR(64) NOT NULL,
            member_id VARCHAR(64) NOT NULL,
            name VARCHAR(255),
            email VARCHAR(255),
            phone VARCHAR(64),
            role VARCHAR(32) NOT NULL DEFAULT 'member',
            active TINYINT(1) NOT NULL DEFAULT 1,
            PRIMARY KEY (team_id, member_id)
        )`,
		`CREATE TABLE IF NOT EXISTS team_overrides (
            team_id VARCHAR(64) NOT NULL,
            payload JSON NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
            PRIMARY KEY (team_id)
        )`,
		`CREATE TABLE IF NOT EXISTS notification_channels (
            id VARCHAR(64) NOT NULL,
            name VARCHAR(255) NOT NULL,
            channel_type VARCHAR(16) NOT NULL,
            enabled TINYINT(1) NOT NULL DEFAULT 1,
            configuration JSON NOT NULL,
            severities JSON,
            max_per_hour INT NOT NULL DEFAULT 0,
            max_per_day INT NOT NULL DEFAULT 0,
            PRIMARY KEY (id)
        )`,
		`CREATE TABLE IF NOT EXISTS delivery_records (
            id VARCHAR(64) NOT NULL,
            alert_id VARCHAR(64) NOT NULL,
            channel_id VARCHAR(64) NOT NULL,
            channel_type VARCHAR(16) NOT NULL,
            status VARCHAR(16) NOT NULL,
            external_message_id VARCHAR(255),
            error TEXT,
            attempts INT NOT NULL DEFAULT 1,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
            PRIMARY KEY (id),
            KEY idx_channel_window (channel_id, created_at)
        )`,
		`CREATE TABLE IF NOT EXISTS in_app_notifications (
            id VARCHAR(64) NOT NULL,
            user_id VARCHAR(64) NOT NULL,
            alert_id VARCHAR(64) NOT NULL,
            subject VARCHAR(512) NOT NULL,
            body TEXT,
            severity VARCHAR(16) NOT NULL,
            is_read TINYINT(1) NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (id),
            KEY idx_user (user_id, created_at)
        )`,
		`CREATE TABLE IF NOT EXISTS delivery_batches (
            id VARCHAR(64) NOT NULL,
            alert_id VARCHAR(64) NOT NULL,
            success_count INT NOT NULL DEFAULT 0,
            failure_count INT NOT NULL DEFAULT 0,
            total_time_ms BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (id),
            KEY idx_alert (alert_id, created_at)
        )`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema failed: %s: %w", strings.SplitN(stmt, "(", 2)[0], err)
		}
	}
	return nil
}
