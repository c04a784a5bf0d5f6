package db

import (
	"database/sql"
	"fmt"

	"voicewave/config"
	"voicewave/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database",
		logger.String("host", cfg.DBHost),
		logger.String("db", cfg.DBName))
	return nil
}

// InitDB initializes the database schema, creating tables if they don't
// exist. Comments are migrated separately through GORM.
func InitDB() error {
	statements := []struct {
		name  string
		query string
	}{
		{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			bio VARCHAR(500) NOT NULL DEFAULT '',
			avatar VARCHAR(767) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`},
		{"follows", `
		CREATE TABLE IF NOT EXISTS follows (
			follower_id BIGINT NOT NULL,
			followed_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_id, followed_id),
			KEY idx_follows_followed (followed_id),
			CONSTRAINT fk_follows_follower FOREIGN KEY (follower_id) REFERENCES users(id) ON DELETE CASCADE,
			CONSTRAINT fk_follows_followed FOREIGN KEY (followed_id) REFERENCES users(id) ON DELETE CASCADE
		);`},
		{"audios", `
		CREATE TABLE IF NOT EXISTS audios (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			title VARCHAR(120) NOT NULL,
			description VARCHAR(500) NOT NULL DEFAULT '',
			audio_url VARCHAR(767) NOT NULL,
			duration DOUBLE NOT NULL DEFAULT 0,
			is_private TINYINT(1) NOT NULL DEFAULT 0,
			views BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_audios_visibility_created (is_private, created_at),
			KEY idx_audios_user (user_id),
			FULLTEXT KEY ft_audios_title_description (title, description),
			CONSTRAINT fk_audios_user FOREIGN KEY (user_id) REFERENCES users(id)
		);`},
		{"audio_tags", `
		CREATE TABLE IF NOT EXISTS audio_tags (
			audio_id BIGINT NOT NULL,
			tag VARCHAR(64) NOT NULL,
			PRIMARY KEY (audio_id, tag),
			KEY idx_audio_tags_tag (tag),
			CONSTRAINT fk_audio_tags_audio FOREIGN KEY (audio_id) REFERENCES audios(id) ON DELETE CASCADE
		);`},
		{"audio_likes", `
		CREATE TABLE IF NOT EXISTS audio_likes (
			audio_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (audio_id, user_id),
			CONSTRAINT fk_audio_likes_audio FOREIGN KEY (audio_id) REFERENCES audios(id) ON DELETE CASCADE,
			CONSTRAINT fk_audio_likes_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`},
		{"comment_likes", `
		CREATE TABLE IF NOT EXISTS comment_likes (
			comment_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (comment_id, user_id),
			CONSTRAINT fk_comment_likes_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`},
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", stmt.name, err)
		}
	}

	logger.Info("database schema initialized")
	return nil
}
