package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

const taskColumns = `id, title, description, priority, completed, project_id, parent_id, due_date, start_time, end_time, recurrence_rule, created_at, updated_at, deleted_at`

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMA foreign_keys is per connection; keep a single one.
	db.SetMaxOpenConns(1)
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, in model.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Title, in.Description, string(in.Priority), boolInt(in.Completed),
		nullString(in.ProjectID), nullString(in.ParentID), nullDate(in.DueDate),
		nullTime(in.StartTime), nullTime(in.EndTime), strings.TrimSpace(in.RecurrenceRule),
		mustTime(in.CreatedAt), mustTime(in.UpdatedAt), nullTime(in.DeletedAt),
	)
	return err
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, in model.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, completed = ?, project_id = ?, parent_id = ?,
			due_date = ?, start_time = ?, end_time = ?, recurrence_rule = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		in.Title, in.Description, string(in.Priority), boolInt(in.Completed),
		nullString(in.ProjectID), nullString(in.ParentID), nullDate(in.DueDate),
		nullTime(in.StartTime), nullTime(in.EndTime), strings.TrimSpace(in.RecurrenceRule),
		mustTime(in.UpdatedAt), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) SoftDeleteTask(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		mustTime(at), mustTime(at), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.RecurringOnly {
		clauses = append(clauses, "recurrence_rule <> ''")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)
	return r.queryTasks(ctx, query, args...)
}

func (r *SQLiteRepository) ListTasksInRange(ctx context.Context, q RangeQuery) ([]model.Task, error) {
	start, end := q.Start.String(), q.End.String()
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE deleted_at IS NULL AND (
			(recurrence_rule <> '' AND (due_date IS NULL OR due_date <= ?))
			OR (recurrence_rule = '' AND due_date >= ? AND due_date <= ?)
		)
		ORDER BY due_date ASC, created_at ASC`, end, start, end)
}

func (r *SQLiteRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetOverride(ctx context.Context, in model.OccurrenceOverride) error {
	if err := in.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO occurrence_overrides (task_id, occurrence_date, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id, occurrence_date) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		in.TaskID, in.Date.String(), string(in.Status), mustTime(in.UpdatedAt),
	)
	return err
}

func (r *SQLiteRepository) ClearOverride(ctx context.Context, key model.OccurrenceKey) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM occurrence_overrides WHERE task_id = ? AND occurrence_date = ?`,
		key.TaskID, key.Date.String())
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListOverrides(ctx context.Context, filter OverrideFilter) ([]model.OccurrenceOverride, error) {
	query := `SELECT task_id, occurrence_date, status, updated_at FROM occurrence_overrides`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, len(filter.TaskIDs)+2)
	if len(filter.TaskIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(filter.TaskIDs)), ",")
		clauses = append(clauses, "task_id IN ("+marks+")")
		for _, id := range filter.TaskIDs {
			args = append(args, id)
		}
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "occurrence_date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "occurrence_date <= ?")
		args = append(args, filter.To.String())
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY occurrence_date ASC, task_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.OccurrenceOverride, 0)
	for rows.Next() {
		item, scanErr := scanOverride(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MoveOverrides(ctx context.Context, fromID, toID string, from model.LocalDate) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE occurrence_overrides SET task_id = ? WHERE task_id = ? AND occurrence_date >= ?`,
		toID, fromID, from.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullDate(v *model.LocalDate) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.String()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseNullableDate(v sql.NullString) (*model.LocalDate, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := model.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var priority string
	var completed int
	var project, parent, due, start, end sql.NullString
	var created, updated string
	var deleted sql.NullString
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &priority, &completed, &project, &parent,
		&due, &start, &end, &out.RecurrenceRule, &created, &updated, &deleted); err != nil {
		return model.Task{}, err
	}
	out.Priority = model.Priority(priority)
	out.Completed = completed == 1
	out.ProjectID = project.String
	out.ParentID = parent.String

	var err error
	if out.DueDate, err = parseNullableDate(due); err != nil {
		return model.Task{}, err
	}
	if out.StartTime, err = parseNullableTime(start); err != nil {
		return model.Task{}, err
	}
	if out.EndTime, err = parseNullableTime(end); err != nil {
		return model.Task{}, err
	}
	if out.CreatedAt, err = parseRequiredTime(created); err != nil {
		return model.Task{}, err
	}
	if out.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return model.Task{}, err
	}
	if out.DeletedAt, err = parseNullableTime(deleted); err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func scanOverride(s scanner) (model.OccurrenceOverride, error) {
	var out model.OccurrenceOverride
	var date, status, updated string
	if err := s.Scan(&out.TaskID, &date, &status, &updated); err != nil {
		return model.OccurrenceOverride{}, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return model.OccurrenceOverride{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.OccurrenceOverride{}, err
	}
	out.Date = d
	out.Status = model.OverrideStatus(status)
	out.UpdatedAt = updatedAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
