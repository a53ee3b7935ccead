package postgres

import (
	"context"
	"errors"
	"fmt"

	"assessment-monitor-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Directory reads students and course enrollments from Postgres.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) GetStudent(ctx context.Context, studentID int64) (domain.Student, error) {
	st := domain.Student{ID: studentID}
	err := d.pool.QueryRow(ctx, `SELECT name FROM students WHERE id=$1`, studentID).Scan(&st.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student: %w", err)
	}
	return st, nil
}

func (d *Directory) Roster(ctx context.Context, courseID int64) (domain.Roster, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT s.id, s.name
		 FROM enrollments e
		 JOIN students s ON s.id = e.student_id
		 WHERE e.course_id = $1
		 ORDER BY s.name, s.id`,
		courseID,
	)
	if err != nil {
		return domain.Roster{}, fmt.Errorf("load roster: %w", err)
	}
	defer rows.Close()

	roster := domain.Roster{CourseID: courseID}
	for rows.Next() {
		var st domain.Student
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return domain.Roster{}, fmt.Errorf("scan roster: %w", err)
		}
		roster.Students = append(roster.Students, st)
	}
	return roster, rows.Err()
}
