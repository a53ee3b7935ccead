package memory

import (
	"context"

	"assessment-monitor-service/internal/domain"
)

// Directory is a static student directory and course roster (useful for tests/demos).
type Directory struct {
	students map[int64]domain.Student
	courses  map[int64][]int64
}

// NewDirectory builds a directory from course -> enrolled students.
func NewDirectory(enrollments map[int64][]domain.Student) *Directory {
	d := &Directory{
		students: make(map[int64]domain.Student),
		courses:  make(map[int64][]int64),
	}
	for courseID, students := range enrollments {
		for _, st := range students {
			d.students[st.ID] = st
			d.courses[courseID] = append(d.courses[courseID], st.ID)
		}
	}
	return d
}

func (d *Directory) GetStudent(_ context.Context, studentID int64) (domain.Student, error) {
	if st, ok := d.students[studentID]; ok {
		return st, nil
	}
	return domain.Student{}, domain.ErrStudentNotFound
}

func (d *Directory) Roster(_ context.Context, courseID int64) (domain.Roster, error) {
	ids := d.courses[courseID]
	roster := domain.Roster{CourseID: courseID, Students: make([]domain.Student, 0, len(ids))}
	for _, id := range ids {
		roster.Students = append(roster.Students, d.students[id])
	}
	return roster, nil
}
