package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MariaResultRepo реализует ResultRepo для базы данных MariaDB/MySQL.
// Использует таблицу cave_layouts с первичным ключом (sublevel, seed).
type MariaResultRepo struct {
	db *sql.DB
}

// NewMariaResultRepo создает новый репозиторий раскладок для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname?parseTime=true)
//
// Возвращает:
//
//	*MariaResultRepo - экземпляр репозитория
//	error - ошибка при подключении или создании таблицы
func NewMariaResultRepo(dsn string) (*MariaResultRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaResultRepo{db: db}

	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу cave_layouts, если она не существует.
// Отпечаток хранится строкой: 64-битное значение без знака.
func (r *MariaResultRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS cave_layouts (
			sublevel    VARCHAR(64)  NOT NULL,
			seed        INT UNSIGNED NOT NULL,
			slug        MEDIUMTEXT   NOT NULL,
			share_code  TEXT         NOT NULL,
			fingerprint CHAR(16)     NOT NULL,
			layout      MEDIUMBLOB   NOT NULL,
			created_at  DATETIME(3)  NOT NULL,
			PRIMARY KEY (sublevel, seed),
			INDEX idx_fingerprint (fingerprint)
		) ENGINE=InnoDB
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы cave_layouts: %w", err)
	}
	return nil
}

const mariaUpsert = `
	INSERT INTO cave_layouts (sublevel, seed, slug, share_code, fingerprint, layout, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		slug = VALUES(slug),
		share_code = VALUES(share_code),
		fingerprint = VALUES(fingerprint),
		layout = VALUES(layout),
		created_at = VALUES(created_at)
`

// Save сохраняет запись.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (r *MariaResultRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, mariaUpsert,
		rec.Sublevel, rec.Seed, rec.Slug, rec.ShareCode, rec.FingerprintHex(), []byte(rec.Layout), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения %s: %w", rec.Key(), err)
	}
	return nil
}

// BatchSave сохраняет записи в одной транзакции
func (r *MariaResultRepo) BatchSave(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mariaUpsert)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return err
		}
		_, err := stmt.ExecContext(ctx,
			rec.Sublevel, rec.Seed, rec.Slug, rec.ShareCode, rec.FingerprintHex(), []byte(rec.Layout), rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка сохранения %s: %w", rec.Key(), err)
		}
	}

	return tx.Commit()
}

// Load загружает запись. Если записи нет, возвращает (nil, false, nil).
func (r *MariaResultRepo) Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sublevel, seed, slug, share_code, fingerprint, layout, created_at
		FROM cave_layouts WHERE sublevel = ? AND seed = ?`, sublevel, seed)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка загрузки %s: %w", RecordKey(sublevel, seed), err)
	}
	return rec, true, nil
}

// Delete удаляет запись
func (r *MariaResultRepo) Delete(ctx context.Context, sublevel string, seed uint32) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cave_layouts WHERE sublevel = ? AND seed = ?`, sublevel, seed)
	if err != nil {
		return fmt.Errorf("ошибка удаления: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка проверки удаления: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("запись %s не найдена", RecordKey(sublevel, seed))
	}
	return nil
}

// List возвращает записи подуровня по возрастанию сида
func (r *MariaResultRepo) List(ctx context.Context, sublevel string, limit int) ([]*Record, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT sublevel, seed, slug, share_code, fingerprint, layout, created_at
		FROM cave_layouts WHERE sublevel = ? ORDER BY seed`)
	args := []interface{}{sublevel}
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса списка: %w", err)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Close закрывает соединение с базой данных
func (r *MariaResultRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec    Record
		fp     string
		layout []byte
	)
	if err := row.Scan(&rec.Sublevel, &rec.Seed, &rec.Slug, &rec.ShareCode, &fp, &layout, &rec.CreatedAt); err != nil {
		return nil, err
	}
	v, err := parseFingerprintHex(fp)
	if err != nil {
		return nil, fmt.Errorf("повреждённый отпечаток %q: %w", fp, err)
	}
	rec.Fingerprint = v
	rec.Layout = layout
	return &rec, nil
}
