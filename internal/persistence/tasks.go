package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/basket/tasktrack/internal/task"
)

// Order clauses mirror query.Compare and query.CompareCompleted.
var (
	orderAll       = []string{"priority DESC", "created_at DESC", "id DESC"}
	orderCompleted = []string{"created_at DESC", "id DESC"}
)

func (s *SQLiteStore) selectTasks() squirrel.SelectBuilder {
	return s.sq.Select(taskColumns...).From("tasks")
}

func (s *SQLiteStore) listTasks(ctx context.Context, q squirrel.SelectBuilder) ([]task.Task, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make([]task.Task, 0)
	for rows.Next() {
		var t task.Task
		if err := scanTask(rows.Scan, &t); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]task.Task, error) {
	return s.listTasks(ctx, s.selectTasks().OrderBy(orderAll...))
}

func (s *SQLiteStore) Active(ctx context.Context) ([]task.Task, error) {
	return s.listTasks(ctx, s.selectTasks().Where(squirrel.Eq{"is_completed": false}).OrderBy(orderAll...))
}

func (s *SQLiteStore) Completed(ctx context.Context) ([]task.Task, error) {
	return s.listTasks(ctx, s.selectTasks().Where(squirrel.Eq{"is_completed": true}).OrderBy(orderCompleted...))
}

func (s *SQLiteStore) ByCategory(ctx context.Context, category string) ([]task.Task, error) {
	return s.listTasks(ctx, s.selectTasks().Where(squirrel.Eq{"category": category}).OrderBy(orderAll...))
}

// Search matches text against title and description with task_match. The
// empty string matches nothing.
func (s *SQLiteStore) Search(ctx context.Context, text string) ([]task.Task, error) {
	if text == "" {
		return []task.Task{}, nil
	}
	return s.listTasks(ctx, s.selectTasks().Where("task_match(title, description, ?)", text).OrderBy(orderAll...))
}

func (s *SQLiteStore) ByID(ctx context.Context, id int64) (task.Task, error) {
	stmt, args, err := s.selectTasks().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return task.Task{}, fmt.Errorf("build task query: %w", err)
	}
	var t task.Task
	if err := scanTask(s.db.QueryRowContext(ctx, stmt, args...).Scan, &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("select task %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	stmt, args, err := s.sq.Select("DISTINCT category").From("tasks").
		Where(squirrel.NotEq{"category": ""}).
		OrderBy("category").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) count(ctx context.Context, where squirrel.Sqlizer) (int, error) {
	q := s.sq.Select("COUNT(1)").From("tasks")
	if where != nil {
		q = q.Where(where)
	}
	stmt, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, nil)
}

func (s *SQLiteStore) ActiveCount(ctx context.Context) (int, error) {
	return s.count(ctx, squirrel.Eq{"is_completed": false})
}

func (s *SQLiteStore) CompletedCount(ctx context.Context) (int, error) {
	return s.count(ctx, squirrel.Eq{"is_completed": true})
}

// OverdueCount counts incomplete tasks due strictly before now.
func (s *SQLiteStore) OverdueCount(ctx context.Context, now time.Time) (int, error) {
	return s.count(ctx, squirrel.And{
		squirrel.Eq{"is_completed": false},
		squirrel.Gt{"due_date": 0},
		squirrel.Lt{"due_date": now.UnixMilli()},
	})
}

func insertBuilder(sq squirrel.StatementBuilderType, t task.Task) squirrel.InsertBuilder {
	if t.ID == 0 {
		return sq.Insert("tasks").
			Columns(taskColumns[1:]...).
			Values(t.Title, t.Description, t.Completed, t.CreatedAt, t.DueDate, t.Priority, t.Category)
	}
	return sq.Insert("tasks").
		Options("OR REPLACE").
		Columns(taskColumns...).
		Values(t.ID, t.Title, t.Description, t.Completed, t.CreatedAt, t.DueDate, t.Priority, t.Category)
}

// Insert stores t and returns its id. A zero id gets a fresh one; a set id
// replaces any row with that id.
func (s *SQLiteStore) Insert(ctx context.Context, t task.Task) (int64, error) {
	stmt, args, err := insertBuilder(s.sq, t).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	err = retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// InsertAll stores tasks in one transaction and returns their ids in order.
func (s *SQLiteStore) InsertAll(ctx context.Context, tasks []task.Task) ([]int64, error) {
	ids := make([]int64, 0, len(tasks))
	err := retryOnBusy(ctx, busyRetries, func() error {
		ids = ids[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		for _, t := range tasks {
			stmt, args, err := insertBuilder(s.sq, t).ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("insert tasks: %w", err)
	}
	return ids, nil
}

// Update replaces every mutable column of the row with t's id. created_at is
// never written. A missing id affects zero rows.
func (s *SQLiteStore) Update(ctx context.Context, t task.Task) (int64, error) {
	stmt, args, err := s.sq.Update("tasks").
		SetMap(map[string]any{
			"title":        t.Title,
			"description":  t.Description,
			"is_completed": t.Completed,
			"due_date":     t.DueDate,
			"priority":     t.Priority,
			"category":     t.Category,
		}).
		Where(squirrel.Eq{"id": t.ID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	return s.exec(ctx, "update task", stmt, args)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (int64, error) {
	stmt, args, err := s.sq.Delete("tasks").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	return s.exec(ctx, "delete task", stmt, args)
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	stmt, args, err := s.sq.Delete("tasks").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	return s.exec(ctx, "delete all tasks", stmt, args)
}

func (s *SQLiteStore) exec(ctx context.Context, op, stmt string, args []any) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}
